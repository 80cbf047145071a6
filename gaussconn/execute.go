package gaussconn

import (
	"context"

	"github.com/opengauss-go/gaussconn/gausserr"
	"github.com/opengauss-go/gaussconn/gaussproto"
)

// Param is one bound parameter value: either a pre-encoded text/binary
// payload (Value, nil meaning SQL NULL) with an explicit type OID, or left
// zero-valued for the server to infer the type (OID 0).
type Param struct {
	OID    uint32
	Value  []byte
	Binary bool
}

// CommandTag is the server's textual summary of a completed command (e.g.
// "SELECT 3", "INSERT 0 1"), parsed per spec.md section 12 Supplemented
// Features.
type CommandTag string

// RowsAffected extracts the trailing integer of tag, or 0 if tag has none
// (e.g. "SELECT" without a count, "BEGIN").
func (t CommandTag) RowsAffected() int64 {
	s := string(t)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0
	}
	var n int64
	for _, c := range s[i:] {
		n = n*10 + int64(c-'0')
	}
	return n
}

// Execute implements spec.md section 4.3's execute operation: Parse/
// Bind/Describe/Execute/Sync over the extended query protocol (or a plain
// simple-query 'Q' message when there are no parameters and auto-prepare is
// disabled), returning a forward-only ResultStream. A prepared statement
// already in the LRU is reused; a fingerprint crossing
// AutoPrepareMinUsages is promoted to prepared and, on LRU eviction, its
// victim is explicitly Closed on the wire (spec.md section 8 scenario 4).
func (c *Connector) Execute(ctx context.Context, sql string, params []Param) (*ResultStream, error) {
	if !c.casState(Ready, Executing) {
		return nil, gausserr.OperationInProgress()
	}

	if len(params) == 0 && c.cfg.MaxAutoPrepare <= 0 {
		return c.executeSimple(ctx, sql)
	}
	return c.executeExtended(ctx, sql, params)
}

func (c *Connector) executeSimple(ctx context.Context, sql string) (*ResultStream, error) {
	c.frame.Send(&gaussproto.Query{SQL: sql})
	if err := c.frame.Flush(); err != nil {
		c.state.Store(int32(Broken))
		return nil, gausserr.Broken(err, "gaussconn: simple query write")
	}
	return newTracedResultStream(ctx, c, nil, sql, nil, false), nil
}

func (c *Connector) executeExtended(ctx context.Context, sql string, params []Param) (*ResultStream, error) {
	oids := make([]uint32, len(params))
	for i, p := range params {
		oids[i] = p.OID
	}
	fp := fingerprint(sql, oids)

	if cached := c.stmts.Lookup(fp); cached != nil {
		cached.UsageCount++
		c.sendBindExecute(cached.Name, params)
		if err := c.frame.Flush(); err != nil {
			c.state.Store(int32(Broken))
			return nil, gausserr.Broken(err, "gaussconn: extended query write")
		}
		// cached is already promoted and at the front of the LRU (Lookup
		// did the MoveToFront); pass nil so finishPromotion doesn't
		// Promote it a second time and orphan its existing list node.
		return newTracedResultStream(ctx, c, nil, sql, paramsToArgs(params), true), nil
	}

	promote := c.stmts.RecordUse(fp)
	stmtName := ""
	if promote {
		stmtName = c.stmts.NextStatementName()
	}

	c.frame.Send(&gaussproto.Parse{StatementName: stmtName, Query: sql, ParameterOIDs: oids})
	c.sendBindExecute(stmtName, params)

	if err := c.frame.Flush(); err != nil {
		c.state.Store(int32(Broken))
		return nil, gausserr.Broken(err, "gaussconn: extended query write")
	}

	var pending *PreparedStatement
	if promote {
		pending = &PreparedStatement{Fingerprint: fp, Name: stmtName, SQL: sql, ParameterOIDs: oids}
	}
	return newTracedResultStream(ctx, c, pending, sql, paramsToArgs(params), promote), nil
}

func (c *Connector) sendBindExecute(stmtName string, params []Param) {
	values := make([][]byte, len(params))
	formatCodes := make([]int16, len(params))
	for i, p := range params {
		values[i] = p.Value
		if p.Binary {
			formatCodes[i] = 1
		}
	}

	c.frame.Send(&gaussproto.Bind{
		DestinationPortal:    "",
		PreparedStatement:    stmtName,
		ParameterFormatCodes: formatCodes,
		Parameters:           values,
		ResultFormatCodes:    []int16{1}, // binary results throughout
	})
	c.frame.Send(&gaussproto.Describe{ObjectType: gaussproto.TargetPortal, Name: ""})
	c.frame.Send(&gaussproto.Execute{Portal: "", MaxRows: 0})
	c.frame.Send(&gaussproto.Sync{})
}

// closeEvictedStatements sends Close for every statement the stmtCache has
// evicted since the last drain, as required by spec.md section 8 scenario
// 4.
func (c *Connector) closeEvictedStatements() error {
	for _, sd := range c.stmts.TakeEvicted() {
		c.frame.Send(&gaussproto.Close{ObjectType: gaussproto.TargetStatement, Name: sd.Name})
	}
	return c.frame.Flush()
}
