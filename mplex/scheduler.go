package mplex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opengauss-go/gaussconn/gaussconn"
	"github.com/opengauss-go/gaussconn/gausserr"
	"github.com/opengauss-go/gaussconn/gaussproto"
)

// muxConn pairs one Connector with the FIFO of handles its dedicated
// reader task must complete in order (spec.md section 4.5).
type muxConn struct {
	conn *gaussconn.Connector

	fifoMu sync.Mutex
	fifo   []*CommandHandle
}

// Scheduler is spec.md section 4.5's multiplexing scheduler: a bounded
// MPMC CommandQueue, a single writer task, and one reader task per
// connector. Enabled only when Multiplexing=true (which requires
// Pooling=true, enforced by connstring.Validate before a Scheduler is
// constructed).
type Scheduler struct {
	queue         chan *CommandHandle
	maxBatchBytes int

	metrics     gaussconn.Metrics
	metricsPool string

	conns []*muxConn
	rrIdx int
	rrMu  sync.Mutex

	stop chan struct{}
	wg   sync.WaitGroup
}

// New opens numConns dedicated connectors (permanently marked Executing
// via MarkMultiplexing, since many logical commands share each one) and
// starts the writer task plus one reader task per connector.
func New(ctx context.Context, cfg *gaussconn.Config, numConns int, queueSize, maxBatchBytes int) (*Scheduler, error) {
	s := &Scheduler{
		queue:         make(chan *CommandHandle, queueSize),
		maxBatchBytes: maxBatchBytes,
		metrics:       cfg.Metrics,
		metricsPool:   cfg.MetricsPool(),
		stop:          make(chan struct{}),
	}

	for i := 0; i < numConns; i++ {
		hostIdx := i % len(cfg.Hosts)
		conn, err := gaussconn.Open(ctx, cfg, hostIdx)
		if err != nil {
			s.closeConns()
			return nil, err
		}
		conn.MarkMultiplexing()
		mc := &muxConn{conn: conn}
		s.conns = append(s.conns, mc)
		s.wg.Add(1)
		go s.readLoop(mc)
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// Submit enqueues sql/params for execution on whichever connector the
// writer task next picks, returning a handle the caller waits on.
func (s *Scheduler) Submit(sql string, params []gaussconn.Param) (*CommandHandle, error) {
	h := newCommandHandle(sql, params)
	select {
	case s.queue <- h:
		return h, nil
	case <-s.stop:
		return nil, gausserr.ConfigurationInvalid("mplex: scheduler is closed")
	}
}

// cancel implements spec.md section 4.5's two-path cancellation: a
// not-yet-written handle is simply marked skipped so the writer drops it
// without touching the wire; an already-written handle's connector is
// cancelled out-of-band, aborting every command still in flight on it.
func (s *Scheduler) cancel(h *CommandHandle) {
	if h.markSkipped() {
		h.complete(CommandResult{Err: gausserr.Canceled(fmt.Sprintf("mplex: command %s canceled before it was written", h.ID()))})
		return
	}
	for _, mc := range s.conns {
		mc.fifoMu.Lock()
		attached := false
		for _, fh := range mc.fifo {
			if fh == h {
				attached = true
				break
			}
		}
		mc.fifoMu.Unlock()
		if attached {
			_ = mc.conn.Cancel(context.Background())
			return
		}
	}
}

// Close stops the writer and every reader and closes every connector.
func (s *Scheduler) Close() {
	close(s.stop)
	s.closeConns()
	s.wg.Wait()
}

func (s *Scheduler) closeConns() {
	for _, mc := range s.conns {
		_ = mc.conn.Terminate()
	}
}

func (s *Scheduler) writeLoop() {
	defer s.wg.Done()
	for {
		var h *CommandHandle
		select {
		case <-s.stop:
			return
		case h = <-s.queue:
		}

		mc := s.pickConnector()
		if mc == nil {
			h.complete(CommandResult{Err: gausserr.Broken(nil, "mplex: no connectors available")})
			continue
		}

		batch := []*CommandHandle{h}
		batchBytes := h.approxBytes()
	drain:
		for batchBytes < s.maxBatchBytes {
			select {
			case next := <-s.queue:
				batch = append(batch, next)
				batchBytes += next.approxBytes()
			default:
				break drain
			}
		}

		s.writeBatch(mc, batch)
	}
}

func (s *Scheduler) pickConnector() *muxConn {
	s.rrMu.Lock()
	defer s.rrMu.Unlock()
	n := len(s.conns)
	for i := 0; i < n; i++ {
		mc := s.conns[s.rrIdx%n]
		s.rrIdx++
		if mc.conn.State() != gaussconn.Broken {
			return mc
		}
	}
	return nil
}

func (s *Scheduler) writeBatch(mc *muxConn, batch []*CommandHandle) {
	batchStarted := time.Now()
	written := make([]*CommandHandle, 0, len(batch))
	for _, h := range batch {
		if h.markSkipped() {
			h.complete(CommandResult{Err: gausserr.Canceled(fmt.Sprintf("mplex: command %s canceled before it was written", h.ID()))})
			continue
		}
		pending, err := mc.conn.WriteExtended(h.SQL, h.Params)
		if err != nil {
			h.complete(CommandResult{Err: err})
			continue
		}
		h.pending = pending
		mc.conn.WriteSync()
		h.markWritten()
		written = append(written, h)
	}

	if len(written) == 0 {
		return
	}

	if err := mc.conn.FlushWrite(); err != nil {
		for _, h := range written {
			h.complete(CommandResult{Err: err})
		}
		return
	}

	if s.metrics != nil {
		s.metrics.MultiplexBatchWritten(s.metricsPool, len(written), time.Since(batchStarted))
	}

	mc.fifoMu.Lock()
	mc.fifo = append(mc.fifo, written...)
	mc.fifoMu.Unlock()
}

func (s *Scheduler) readLoop(mc *muxConn) {
	defer s.wg.Done()

	var res CommandResult
	for {
		msg, err := mc.conn.ReceiveMessage()
		if err != nil {
			s.failAllPending(mc, err)
			return
		}

		switch m := msg.(type) {
		case *gaussproto.ParseComplete, *gaussproto.BindComplete, *gaussproto.NoData, *gaussproto.EmptyQueryResponse:
			// nothing to surface

		case *gaussproto.RowDescription:
			res.Fields = append([]gaussproto.FieldDescription(nil), m.Fields...)

		case *gaussproto.DataRow:
			res.Rows = append(res.Rows, append([][]byte(nil), m.Values...))

		case *gaussproto.CommandComplete:
			res.Tag = gaussconn.CommandTag(m.CommandTag)

		case *gaussproto.ErrorResponse:
			res.Err = gausserr.ServerError(m.Code, m.Message, m.Detail, m.Hint, m.ColumnName, m.TableName, m.ConstraintName, m.File, m.Line, m.Routine)

		case *gaussproto.NoticeResponse, *gaussproto.ParameterStatus, *gaussproto.NotificationResponse, *gaussproto.ParameterDescription:
			// out-of-band; no per-command handle to attach these to

		case *gaussproto.ReadyForQuery:
			h := s.popFIFO(mc)
			if h == nil {
				res = CommandResult{}
				continue
			}
			if res.Err == nil {
				_ = mc.conn.PromoteAndSync(h.pending)
			}
			h.complete(res)
			res = CommandResult{}

		default:
			s.failAllPending(mc, gausserr.ProtocolViolation("mplex: unexpected message %T", m))
			return
		}
	}
}

func (s *Scheduler) popFIFO(mc *muxConn) *CommandHandle {
	mc.fifoMu.Lock()
	defer mc.fifoMu.Unlock()
	if len(mc.fifo) == 0 {
		return nil
	}
	h := mc.fifo[0]
	mc.fifo = mc.fifo[1:]
	return h
}

func (s *Scheduler) failAllPending(mc *muxConn, err error) {
	mc.fifoMu.Lock()
	pending := mc.fifo
	mc.fifo = nil
	mc.fifoMu.Unlock()
	for _, h := range pending {
		h.complete(CommandResult{Err: err})
	}
}
