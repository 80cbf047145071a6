// Package gaussmetrics exposes the event counters spec.md section 6
// requires (bytes written/read per second, commands per second,
// total/current/failed commands, prepared-commands ratio,
// connection-pools count, idle/busy connection counts, multiplexing
// average commands per batch, multiplexing average write time per batch)
// as Prometheus collectors. Grounded on
// JeelKantaria-db-bouncer/internal/metrics/metrics.go: a Collector struct
// holding a private *prometheus.Registry plus one field per metric,
// registered once in New and mutated through small setter methods.
package gaussmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every Prometheus metric this module reports.
type Collector struct {
	Registry *prometheus.Registry

	bytesWritten *prometheus.CounterVec
	bytesRead    *prometheus.CounterVec

	commandsTotal   *prometheus.CounterVec
	commandsCurrent *prometheus.GaugeVec
	commandsFailed  *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	preparedCommands *prometheus.CounterVec
	simpleCommands   *prometheus.CounterVec

	poolsCount *prometheus.GaugeVec
	poolIdle   *prometheus.GaugeVec
	poolBusy   *prometheus.GaugeVec

	multiplexBatchesSent   *prometheus.CounterVec
	multiplexCommandsTotal *prometheus.CounterVec
	multiplexBatchWrite    *prometheus.HistogramVec
}

// New creates and registers every metric on a fresh registry. Safe to
// call multiple times (e.g. in tests) since each call owns an independent
// registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		bytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_bytes_written_total", Help: "Total bytes written to the wire, per pool"},
			[]string{"pool"},
		),
		bytesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_bytes_read_total", Help: "Total bytes read from the wire, per pool"},
			[]string{"pool"},
		),

		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_commands_total", Help: "Total commands executed, per pool"},
			[]string{"pool"},
		),
		commandsCurrent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gaussconn_commands_current", Help: "Commands currently executing, per pool"},
			[]string{"pool"},
		),
		commandsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_commands_failed_total", Help: "Total commands that ended in ErrorResponse, per pool"},
			[]string{"pool"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gaussconn_command_duration_seconds",
				Help:    "Duration from Execute to CommandComplete",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"pool"},
		),

		preparedCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_prepared_commands_total", Help: "Commands executed via a cached prepared statement, per pool"},
			[]string{"pool"},
		),
		simpleCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_simple_commands_total", Help: "Commands executed without a prepared statement, per pool"},
			[]string{"pool"},
		),

		poolsCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gaussconn_pools", Help: "Number of live connection pools"},
			[]string{"pool"},
		),
		poolIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gaussconn_pool_idle_connections", Help: "Idle connectors, per pool"},
			[]string{"pool"},
		),
		poolBusy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gaussconn_pool_busy_connections", Help: "Busy connectors, per pool"},
			[]string{"pool"},
		),

		multiplexBatchesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_multiplex_batches_total", Help: "Write batches sent by the multiplexing scheduler, per pool"},
			[]string{"pool"},
		),
		multiplexCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gaussconn_multiplex_batched_commands_total", Help: "Commands written as part of a multiplexing batch, per pool"},
			[]string{"pool"},
		),
		multiplexBatchWrite: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gaussconn_multiplex_batch_write_seconds",
				Help:    "Time spent writing and flushing one multiplexing batch",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 18),
			},
			[]string{"pool"},
		),
	}

	reg.MustRegister(
		c.bytesWritten, c.bytesRead,
		c.commandsTotal, c.commandsCurrent, c.commandsFailed, c.commandDuration,
		c.preparedCommands, c.simpleCommands,
		c.poolsCount, c.poolIdle, c.poolBusy,
		c.multiplexBatchesSent, c.multiplexCommandsTotal, c.multiplexBatchWrite,
	)

	return c
}

// BytesWritten/BytesRead accumulate wire traffic, driven by the frame
// codec's Flush/Receive paths.
func (c *Collector) BytesWritten(pool string, n int) { c.bytesWritten.WithLabelValues(pool).Add(float64(n)) }
func (c *Collector) BytesRead(pool string, n int)    { c.bytesRead.WithLabelValues(pool).Add(float64(n)) }

// CommandStarted/CommandFinished bracket one Execute call.
func (c *Collector) CommandStarted(pool string) {
	c.commandsTotal.WithLabelValues(pool).Inc()
	c.commandsCurrent.WithLabelValues(pool).Inc()
}

func (c *Collector) CommandFinished(pool string, d time.Duration, prepared bool, err error) {
	c.commandsCurrent.WithLabelValues(pool).Dec()
	c.commandDuration.WithLabelValues(pool).Observe(d.Seconds())
	if err != nil {
		c.commandsFailed.WithLabelValues(pool).Inc()
	}
	if prepared {
		c.preparedCommands.WithLabelValues(pool).Inc()
	} else {
		c.simpleCommands.WithLabelValues(pool).Inc()
	}
}

// SetPoolStats mirrors gausspool.Pool.Stats into the idle/busy gauges.
func (c *Collector) SetPoolStats(pool string, idle, busy int) {
	c.poolsCount.WithLabelValues(pool).Set(1)
	c.poolIdle.WithLabelValues(pool).Set(float64(idle))
	c.poolBusy.WithLabelValues(pool).Set(float64(busy))
}

// RemovePool clears every series for a pool that has been closed.
func (c *Collector) RemovePool(pool string) {
	c.bytesWritten.DeleteLabelValues(pool)
	c.bytesRead.DeleteLabelValues(pool)
	c.commandsTotal.DeleteLabelValues(pool)
	c.commandsCurrent.DeleteLabelValues(pool)
	c.commandsFailed.DeleteLabelValues(pool)
	c.preparedCommands.DeleteLabelValues(pool)
	c.simpleCommands.DeleteLabelValues(pool)
	c.poolsCount.DeleteLabelValues(pool)
	c.poolIdle.DeleteLabelValues(pool)
	c.poolBusy.DeleteLabelValues(pool)
	c.multiplexBatchesSent.DeleteLabelValues(pool)
	c.multiplexCommandsTotal.DeleteLabelValues(pool)
}

// MultiplexBatchWritten records one writer-task iteration: the number of
// commands it coalesced and how long the write+flush took, per spec.md
// section 8 scenario 5 ("multiplexing_batches_sent >= 1, commands_per_batch
// > 1 for at least one batch").
func (c *Collector) MultiplexBatchWritten(pool string, commandCount int, d time.Duration) {
	c.multiplexBatchesSent.WithLabelValues(pool).Inc()
	c.multiplexCommandsTotal.WithLabelValues(pool).Add(float64(commandCount))
	c.multiplexBatchWrite.WithLabelValues(pool).Observe(d.Seconds())
}
