package gaussconn

import (
	"context"
	"time"

	"github.com/opengauss-go/gaussconn/gausserr"
	"github.com/opengauss-go/gaussconn/gaussproto"
)

// ResultStream is spec.md section 4.3's forward-only result cursor:
// row descriptors and rows are surfaced lazily until CommandComplete,
// after which the connector drains to ReadyForQuery and returns to Ready.
type ResultStream struct {
	conn *Connector

	pendingPrepare *PreparedStatement

	ctx           context.Context
	tracer        Tracer
	execStarted   time.Time
	prepStarted   time.Time
	sql           string
	args          []any
	tracedExecEnd bool

	metrics         Metrics
	metricsPool     string
	metricsPrepared bool
	metricsStarted  time.Time

	fields []gaussproto.FieldDescription
	values [][]byte
	tag    CommandTag
	err    error
	done   bool
}

func newResultStream(conn *Connector, pendingPrepare *PreparedStatement) *ResultStream {
	conn.state.Store(int32(Executing))
	return &ResultStream{conn: conn, pendingPrepare: pendingPrepare}
}

// newTracedResultStream is newResultStream plus the bookkeeping Execute
// needs to bracket the command with Tracer.ExecuteStart/ExecuteEnd (and, for
// a freshly-promoted statement, PrepareStart/PrepareEnd) per spec.md
// section 10.1, and with Metrics.CommandStarted/CommandFinished per spec.md
// section 6. prepared reports whether sql is running through a cached or
// newly-promoted prepared statement, as opposed to the simple-query path.
func newTracedResultStream(ctx context.Context, conn *Connector, pendingPrepare *PreparedStatement, sql string, args []any, prepared bool) *ResultStream {
	r := newResultStream(conn, pendingPrepare)

	if conn.cfg.Metrics != nil {
		r.metrics = conn.cfg.Metrics
		r.metricsPool = conn.cfg.MetricsPool()
		r.metricsPrepared = prepared
		r.metricsStarted = time.Now()
		r.metrics.CommandStarted(r.metricsPool)
	}

	if conn.cfg.Tracer == nil {
		return r
	}
	r.ctx = ctx
	r.tracer = conn.cfg.Tracer
	r.sql = sql
	r.args = args
	r.execStarted = r.tracer.ExecuteStart(ctx, sql, args)
	if pendingPrepare != nil {
		r.prepStarted = r.tracer.PrepareStart(ctx, pendingPrepare.Name, sql)
	}
	return r
}

// Next advances to the next row, returning false at end-of-results (check
// Err to distinguish normal completion from failure). Per spec.md section
// 4.3, Next drives the connector Executing -> Fetching on the first row
// and back to Ready on ReadyForQuery.
func (r *ResultStream) Next() bool {
	if r.done {
		return false
	}

	for {
		msg, err := r.conn.frame.Receive()
		if err != nil {
			r.fail(gausserr.Broken(err, "gaussconn: result stream read"))
			return false
		}

		switch m := msg.(type) {
		case *gaussproto.ParseComplete:
			// nothing to surface

		case *gaussproto.BindComplete:
			// nothing to surface

		case *gaussproto.ParameterDescription:
			if r.pendingPrepare != nil {
				r.pendingPrepare.ParameterDesc = append([]uint32(nil), m.ParameterOIDs...)
			}

		case *gaussproto.RowDescription:
			r.conn.state.Store(int32(Fetching))
			r.fields = append([]gaussproto.FieldDescription(nil), m.Fields...)
			if r.pendingPrepare != nil {
				r.pendingPrepare.RowDesc = toFieldDescriptors(m.Fields)
			}

		case *gaussproto.NoData:
			// statement produces no rows (e.g. DDL, DML without RETURNING)

		case *gaussproto.DataRow:
			r.conn.state.Store(int32(Fetching))
			r.values = append([][]byte(nil), m.Values...)
			return true

		case *gaussproto.CommandComplete:
			r.tag = CommandTag(m.CommandTag)

		case *gaussproto.EmptyQueryResponse:
			// nothing to surface

		case *gaussproto.NoticeResponse:
			if r.conn.onNotice != nil {
				r.conn.onNotice(m.ErrorFields)
			}

		case *gaussproto.ParameterStatus:
			r.conn.setParam(m.Name, m.Value)

		case *gaussproto.NotificationResponse:
			if r.conn.onNotification != nil {
				r.conn.onNotification(m.PID, m.Channel, m.Payload)
			}

		case *gaussproto.ErrorResponse:
			// Per spec.md section 4.3 "Ordering and tie-breaks", the server
			// swallows subsequent messages until Sync; keep draining to
			// ReadyForQuery before surfacing the failure.
			r.err = gausserr.ServerError(m.Code, m.Message, m.Detail, m.Hint, m.ColumnName, m.TableName, m.ConstraintName, m.File, m.Line, m.Routine)

		case *gaussproto.ReadyForQuery:
			r.finishPromotion()
			r.conn.state.Store(int32(Ready))
			r.done = true
			r.traceExecuteEnd()
			return false

		default:
			r.fail(gausserr.ProtocolViolation("gaussconn: unexpected message %T during result stream", m))
			return false
		}
	}
}

func (r *ResultStream) finishPromotion() {
	if r.pendingPrepare == nil {
		return
	}
	if r.tracer != nil {
		r.tracer.PrepareEnd(r.ctx, r.prepStarted, r.conn.pid, r.pendingPrepare.Name, r.sql, r.err)
	}
	if r.err == nil {
		r.conn.stmts.Promote(r.pendingPrepare)
		_ = r.conn.closeEvictedStatements()
	}
	r.pendingPrepare = nil
}

func (r *ResultStream) fail(err error) {
	r.err = err
	r.done = true
	r.conn.state.Store(int32(Broken))
	r.finishPromotion()
	r.traceExecuteEnd()
}

// traceExecuteEnd fires Tracer.ExecuteEnd and Metrics.CommandFinished
// exactly once per stream, whether it finished via ReadyForQuery or failed
// outright.
func (r *ResultStream) traceExecuteEnd() {
	if r.tracedExecEnd {
		return
	}
	r.tracedExecEnd = true
	if r.tracer != nil {
		r.tracer.ExecuteEnd(r.ctx, r.execStarted, r.conn.pid, r.sql, r.args, string(r.tag), r.err)
	}
	if r.metrics != nil {
		r.metrics.CommandFinished(r.metricsPool, time.Since(r.metricsStarted), r.metricsPrepared, r.err)
	}
}

// Fields returns the row descriptor for the current result set.
func (r *ResultStream) Fields() []gaussproto.FieldDescription { return r.fields }

// Values returns the current row's raw column values (nil entries are SQL
// NULL). Per the frame codec's flyweight design (spec.md Design Notes
// section 9), the byte slices alias the connector's read buffer and are
// only valid until the next call to Next; copy anything that must outlive
// it.
func (r *ResultStream) Values() [][]byte { return r.values }

// CommandTag returns the server's command tag once CommandComplete has
// been observed.
func (r *ResultStream) CommandTag() CommandTag { return r.tag }

// Err returns the terminal error, if any, after Next returns false.
func (r *ResultStream) Err() error { return r.err }

func toFieldDescriptors(fields []gaussproto.FieldDescription) []FieldDescriptor {
	out := make([]FieldDescriptor, len(fields))
	for i, f := range fields {
		out[i] = FieldDescriptor{
			Name:         string(f.Name),
			DataTypeOID:  f.DataTypeOID,
			DataTypeSize: f.DataTypeSize,
			Format:       f.Format,
		}
	}
	return out
}
