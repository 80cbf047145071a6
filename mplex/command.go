// Package mplex implements spec.md section 4.5's multiplexing scheduler:
// a bounded MPMC command queue shared by every submitter, a single writer
// task that batches pending commands onto an idle connector up to
// WriteCoalescingBufferThresholdBytes, and one reader task per connector
// that completes commands in the order they were written. Grounded on
// pgx's pgxpool batching (pgxpool/batch_results.go) for the
// submit/complete shape and on gaussconn's extended-query write path for
// the wire-level framing it reuses.
package mplex

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/opengauss-go/gaussconn/gaussconn"
	"github.com/opengauss-go/gaussconn/gaussproto"
)

// CommandResult is the outcome of one multiplexed command: the row
// descriptor, every row collected (small results only -- multiplexed
// commands are not a streaming API, per spec.md section 4.5's "completed
// in FIFO order" contract), the command tag, and the terminal error if
// any.
type CommandResult struct {
	Fields []gaussproto.FieldDescription
	Rows   [][][]byte
	Tag    gaussconn.CommandTag
	Err    error
}

// CommandHandle is spec.md section 3's CommandHandle entity: SQL text,
// parameters, and a completion notifier. One is created per Submit call
// and borrowed by the scheduler until its result is ready.
type CommandHandle struct {
	SQL    string
	Params []gaussconn.Param

	id       uuid.UUID
	pending  *gaussconn.PreparedStatement
	done     chan struct{}
	once     sync.Once
	result   CommandResult
	cancelMu sync.Mutex
	written  bool
	skip     bool
}

func newCommandHandle(sql string, params []gaussconn.Param) *CommandHandle {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system CSPRNG itself fails, which
		// leaves the process in no state to continue; the zero UUID keeps
		// command correlation merely degraded rather than panicking.
		id = uuid.Nil
	}
	return &CommandHandle{SQL: sql, Params: params, id: id, done: make(chan struct{})}
}

// ID is this command's correlation identifier, stable for its lifetime and
// suitable for log/trace correlation across the submit/write/complete path.
func (h *CommandHandle) ID() string { return h.id.String() }

// approxBytes is the writer's estimate of a command's wire footprint,
// used against WriteCoalescingBufferThresholdBytes (spec.md section 4.5).
func (h *CommandHandle) approxBytes() int {
	n := len(h.SQL)
	for _, p := range h.Params {
		n += len(p.Value) + 8
	}
	return n
}

// Wait blocks until the command completes or ctx is cancelled first (in
// which case the underlying connector is sent a cancellation request, per
// spec.md section 4.5's cancellation routing).
func (h *CommandHandle) Wait(ctx context.Context, s *Scheduler) (*CommandResult, error) {
	select {
	case <-h.done:
		return &h.result, h.result.Err
	case <-ctx.Done():
		s.cancel(h)
		<-h.done
		return &h.result, h.result.Err
	}
}

func (h *CommandHandle) complete(res CommandResult) {
	h.once.Do(func() {
		h.result = res
		close(h.done)
	})
}

func (h *CommandHandle) markWritten() {
	h.cancelMu.Lock()
	h.written = true
	h.cancelMu.Unlock()
}

func (h *CommandHandle) wasWritten() bool {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	return h.written
}

func (h *CommandHandle) markSkipped() bool {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	if h.written {
		return false
	}
	h.skip = true
	return true
}
