package gaussconn

import (
	"context"
	"time"
)

// Metrics receives the wire-traffic and command counters spec.md section 6
// names. *gaussmetrics.Collector implements this interface; a Config with
// Metrics == nil records nothing, matching the nil-Tracer convention above.
// Declared here rather than imported from gaussmetrics so that gausspool
// (which gaussmetrics' own HTTP server imports, to list pools) never forms
// an import cycle back through gaussconn.
type Metrics interface {
	BytesWritten(pool string, n int)
	BytesRead(pool string, n int)
	CommandStarted(pool string)
	CommandFinished(pool string, d time.Duration, prepared bool, err error)
	MultiplexBatchWritten(pool string, commandCount int, d time.Duration)
}

// Tracer receives structured lifecycle events for the operations spec.md
// section 10.1 names: connect, execute, prepared-statement promotion,
// pool acquire, and pool release. *gausslog.TraceLog implements this
// interface; a Config with Tracer == nil does no logging at all, matching
// pgconn.Config's nil-Tracer-means-silent convention.
type Tracer interface {
	ConnectStart(ctx context.Context, host string, port uint16, database string) time.Time
	ConnectEnd(ctx context.Context, started time.Time, host string, port uint16, database string, pid uint32, err error)

	ExecuteStart(ctx context.Context, sql string, args []any) time.Time
	ExecuteEnd(ctx context.Context, started time.Time, pid uint32, sql string, args []any, commandTag string, err error)

	PrepareStart(ctx context.Context, name, sql string) time.Time
	PrepareEnd(ctx context.Context, started time.Time, pid uint32, name, sql string, err error)

	AcquireStart(ctx context.Context) time.Time
	AcquireEnd(ctx context.Context, started time.Time, pid uint32, err error)

	Release(pid uint32, broken bool)
}

// paramsToArgs extracts the bound values from params for a Tracer's args
// slice; gausslog.TraceLog sanitizes/truncates each entry before it ever
// reaches a log sink, so passing raw []byte here is safe.
func paramsToArgs(params []Param) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		if p.Value == nil {
			args[i] = nil
			continue
		}
		args[i] = p.Value
	}
	return args
}
