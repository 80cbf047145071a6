package gaussconn

import (
	"container/list"
	"fmt"
	"strings"
)

// PreparedStatement is spec.md section 3's PreparedStatement entity:
// fingerprint, server-side name, usage count, and the descriptors the
// server returned for it.
type PreparedStatement struct {
	Fingerprint   string
	Name          string
	SQL           string
	ParameterOIDs []uint32
	ParameterDesc []uint32
	RowDesc       []FieldDescriptor
	UsageCount    int
}

// FieldDescriptor is the subset of gaussproto.FieldDescription a cached
// PreparedStatement needs to remember between executions.
type FieldDescriptor struct {
	Name         string
	DataTypeOID  uint32
	DataTypeSize int16
	Format       int16
}

// fingerprint is the tuple (SQL text, ordered parameter OIDs) the glossary
// defines as identifying a cacheable prepared statement.
func fingerprint(sql string, oids []uint32) string {
	var b strings.Builder
	b.WriteString(sql)
	for _, oid := range oids {
		fmt.Fprintf(&b, "\x00%d", oid)
	}
	return b.String()
}

// stmtCache is the per-connector prepared-statement LRU from spec.md
// section 3/4.3: entries are promoted to prepared after
// AutoPrepareMinUsages uses and evicted LRU once the cache would exceed
// MaxAutoPrepare, adapted from internal/stmtcache/lru_cache.go's
// container/list-backed LRUCache (generalized from a Get/Put-by-SQL-string
// cache keyed by connector-local server-side statement name instead of a
// shared PgConn-relative one).
type stmtCache struct {
	maxAutoPrepare       int
	autoPrepareMinUsages int

	pending map[string]int // fingerprint -> usage count, not yet prepared

	m        map[string]*list.Element // fingerprint -> element
	l        *list.List               // list of *PreparedStatement, front = most recently used
	nextName int
	evicted  []*PreparedStatement
}

func newStmtCache(maxAutoPrepare, autoPrepareMinUsages int) *stmtCache {
	return &stmtCache{
		maxAutoPrepare:       maxAutoPrepare,
		autoPrepareMinUsages: autoPrepareMinUsages,
		pending:              make(map[string]int),
		m:                    make(map[string]*list.Element),
		l:                    list.New(),
	}
}

// Lookup returns the cached PreparedStatement for fp, bumping its recency,
// or nil if fp has not yet been promoted.
func (c *stmtCache) Lookup(fp string) *PreparedStatement {
	if el, ok := c.m[fp]; ok {
		c.l.MoveToFront(el)
		return el.Value.(*PreparedStatement)
	}
	return nil
}

// RecordUse increments fp's pending usage counter. It returns true once
// usage has reached AutoPrepareMinUsages and the caller should prepare it
// on the wire.
func (c *stmtCache) RecordUse(fp string) bool {
	if c.maxAutoPrepare <= 0 {
		return false
	}
	if _, cached := c.m[fp]; cached {
		return false
	}
	c.pending[fp]++
	return c.pending[fp] >= c.autoPrepareMinUsages
}

// Promote inserts a newly prepared statement, evicting the least recently
// used entry if the cache is at capacity. Evicted statements are returned
// by TakeEvicted so the caller can send Close for each on the wire.
func (c *stmtCache) Promote(sd *PreparedStatement) {
	delete(c.pending, sd.Fingerprint)

	if c.l.Len() >= c.maxAutoPrepare {
		c.evictOldest()
	}

	el := c.l.PushFront(sd)
	c.m[sd.Fingerprint] = el
}

func (c *stmtCache) evictOldest() {
	oldest := c.l.Back()
	if oldest == nil {
		return
	}
	sd := oldest.Value.(*PreparedStatement)
	c.evicted = append(c.evicted, sd)
	delete(c.m, sd.Fingerprint)
	c.l.Remove(oldest)
}

// TakeEvicted drains and returns statements evicted since the last call.
func (c *stmtCache) TakeEvicted() []*PreparedStatement {
	evicted := c.evicted
	c.evicted = nil
	return evicted
}

// InvalidateAll evicts every cached statement, e.g. on DISCARD ALL during
// reset.
func (c *stmtCache) InvalidateAll() []*PreparedStatement {
	var all []*PreparedStatement
	for el := c.l.Front(); el != nil; el = el.Next() {
		all = append(all, el.Value.(*PreparedStatement))
	}
	c.m = make(map[string]*list.Element)
	c.l = list.New()
	c.pending = make(map[string]int)
	return all
}

// NextStatementName returns the next server-side statement name, following
// the teacher's "_pN" convention (spec.md section 8 scenario 4).
func (c *stmtCache) NextStatementName() string {
	name := fmt.Sprintf("_p%d", c.nextName)
	c.nextName++
	return name
}

func (c *stmtCache) Len() int { return c.l.Len() }
func (c *stmtCache) Cap() int { return c.maxAutoPrepare }
