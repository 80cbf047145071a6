package gaussconn

import (
	"github.com/opengauss-go/gaussconn/gausserr"
	"github.com/opengauss-go/gaussconn/gaussproto"
)

// The methods in this file are the low-level write/read primitives
// spec.md section 4.5's multiplexing scheduler needs: a connector shared
// by many logical commands, with exactly one writer task and one reader
// task at a time (spec.md section 4.5 "Thread-safety notes"). They bypass
// the single-owner casState dance Execute uses, since the scheduler -- not
// the connector -- now owns sequencing.

// WriteExtended queues Parse/Bind/Describe/Execute for sql onto the
// connector's write buffer without flushing and without a trailing Sync,
// so the scheduler's writer task can batch several commands before one
// flush (spec.md section 4.5). A prepared statement already in the LRU is
// reused exactly as Execute does; promotion follows the same
// AutoPrepareMinUsages bookkeeping.
func (c *Connector) WriteExtended(sql string, params []Param) (pending *PreparedStatement, err error) {
	oids := make([]uint32, len(params))
	for i, p := range params {
		oids[i] = p.OID
	}
	fp := fingerprint(sql, oids)

	if cached := c.stmts.Lookup(fp); cached != nil {
		cached.UsageCount++
		c.sendBindExecute(cached.Name, params)
		// cached is already promoted and at the front of the LRU (Lookup
		// did the MoveToFront); return nil so PromoteAndSync doesn't
		// Promote it a second time and orphan its existing list node.
		return nil, nil
	}

	promote := c.stmts.RecordUse(fp)
	stmtName := ""
	if promote {
		stmtName = c.stmts.NextStatementName()
	}

	c.frame.Send(&gaussproto.Parse{StatementName: stmtName, Query: sql, ParameterOIDs: oids})
	c.sendBindExecute(stmtName, params)

	if promote {
		pending = &PreparedStatement{Fingerprint: fp, Name: stmtName, SQL: sql, ParameterOIDs: oids}
	}
	return pending, nil
}

// WriteSync queues a Sync message; the scheduler's writer sends exactly
// one per batched group of commands so the reader can tell batches apart
// by counting ReadyForQuery (spec.md section 4.5).
func (c *Connector) WriteSync() {
	c.frame.Send(&gaussproto.Sync{})
}

// FlushWrite flushes everything queued by WriteExtended/WriteSync.
func (c *Connector) FlushWrite() error {
	if err := c.frame.Flush(); err != nil {
		c.state.Store(int32(Broken))
		return gausserr.Broken(err, "gaussconn: multiplexed write flush")
	}
	return nil
}

// ReceiveMessage reads one backend message; the scheduler's reader task
// is the sole caller for a connector running in multiplexing mode.
func (c *Connector) ReceiveMessage() (gaussproto.BackendMessage, error) {
	msg, err := c.frame.Receive()
	if err != nil {
		c.state.Store(int32(Broken))
		return nil, gausserr.Broken(err, "gaussconn: multiplexed read")
	}
	return msg, nil
}

// MarkMultiplexing transitions a freshly-opened connector into the
// Executing state permanently for the scheduler's bookkeeping; it never
// returns to Ready on its own the way a singly-owned connector does, since
// many logical commands share it at once.
func (c *Connector) MarkMultiplexing() {
	c.state.Store(int32(Executing))
}

// PromoteAndSync applies a batch's prepared-statement promotions after the
// reader has observed their results succeeded, mirroring
// ResultStream.finishPromotion but for a batch rather than a single
// command.
func (c *Connector) PromoteAndSync(pending *PreparedStatement) error {
	if pending == nil {
		return nil
	}
	c.stmts.Promote(pending)
	return c.closeEvictedStatements()
}
