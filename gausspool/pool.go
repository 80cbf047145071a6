package gausspool

import (
	"context"
	"sync"
	"time"

	"github.com/opengauss-go/gaussconn/connstring"
	"github.com/opengauss-go/gaussconn/gaussconn"
	"github.com/opengauss-go/gaussconn/gausserr"
)

// slot wraps one rented-or-idle Connector with the bookkeeping the pool
// needs: which host it belongs to and when it was opened/last returned.
type slot struct {
	conn     *gaussconn.Connector
	hostIdx  int
	openedAt time.Time
	idleAt   time.Time
}

// Stats mirrors spec.md section 3's Pool statistics (idle/busy counts).
type Stats struct {
	Idle int
	Busy int
}

// Pool is spec.md section 3's Pool entity: connection string, a bounded
// set of slots, an idle queue, a waiter queue, and idle/busy statistics.
// Grounded on pgx's ConnPool (conn_pool.go): a sync.Cond-guarded pair of
// slices rather than an external generic pool library, generalized across
// multiple hosts via hostSet and target-session-attributes selection.
type Pool struct {
	cfg *gaussconn.Config

	mu         sync.Mutex
	cond       *sync.Cond
	all        []*slot
	idle       []*slot
	busyCount  int
	closed     bool
	rrIndex    int
	pruneStop  chan struct{}
	pruneWg    sync.WaitGroup
}

// New creates a Pool for cfg. The pruner goroutine starts immediately and
// runs until Close.
func New(cfg *gaussconn.Config) *Pool {
	p := &Pool{cfg: cfg, pruneStop: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)

	if cfg.ConnectionPruningInterval > 0 {
		p.pruneWg.Add(1)
		go p.pruneLoop()
	}

	return p
}

// Stats reports the pool's current idle/busy counts (spec.md section 8
// "Pool accounting": idle + busy <= MaxPoolSize, busy >= 0, always).
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: len(p.idle), Busy: p.busyCount}
}

// Rent implements spec.md section 4.4's rent operation: pick a candidate
// host per TargetSessionAttributes (and LoadBalanceHosts round-robin),
// reuse a matching idle connector if one exists, open a new one if under
// MaxPoolSize, or wait on the waiter queue up to Timeout. The chosen
// connector's role is probed (and the host-wide cache refreshed) whenever
// TargetSessionAttributes is not Any and the cache is stale.
func (p *Pool) Rent(ctx context.Context) (conn *gaussconn.Connector, err error) {
	if p.cfg.Tracer != nil {
		started := p.cfg.Tracer.AcquireStart(ctx)
		defer func() {
			var pid uint32
			if conn != nil {
				pid = conn.PID()
			}
			p.cfg.Tracer.AcquireEnd(ctx, started, pid, err)
		}()
	}

	deadline := time.Now().Add(p.cfg.Timeout)
	if p.cfg.Timeout <= 0 {
		deadline = time.Time{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			return nil, gausserr.ConfigurationInvalid("gausspool: pool is closed")
		}

		if s := p.takeIdleLocked(); s != nil {
			p.busyCount++
			p.mu.Unlock()
			if err := p.ensureRole(ctx, s); err != nil {
				p.mu.Lock()
				p.busyCount--
				p.removeLocked(p.indexOfLocked(s.conn))
				_ = s.conn.Terminate()
				continue
			}
			p.mu.Lock()
			return s.conn, nil
		}

		if len(p.all) < p.cfg.MaxPoolSize {
			hostIdx := p.chooseHostLocked()
			p.mu.Unlock()
			conn, err := gaussconn.Open(ctx, p.cfg, hostIdx)
			p.mu.Lock()
			if err != nil {
				host := p.cfg.Hosts[hostIdx]
				globalHosts.get(host).MarkOffline(p.cfg.HostRecheckSeconds)
				return nil, err
			}
			s := &slot{conn: conn, hostIdx: hostIdx, openedAt: time.Now()}
			p.all = append(p.all, s)
			p.busyCount++
			p.mu.Unlock()
			if err := p.ensureRole(ctx, s); err != nil {
				p.mu.Lock()
				p.busyCount--
				p.removeLocked(p.indexOfLocked(s.conn))
				_ = s.conn.Terminate()
				continue
			}
			p.mu.Lock()
			return s.conn, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, gausserr.Timeout("gausspool: rent timed out waiting for a connector")
		}

		waitCh := make(chan struct{})
		go func() {
			// sync.Cond has no deadline-aware Wait; this goroutine turns the
			// deadline into a Broadcast so Rent's loop re-checks promptly.
			if deadline.IsZero() {
				return
			}
			select {
			case <-time.After(time.Until(deadline)):
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-waitCh:
			}
		}()
		p.cond.Wait()
		close(waitCh)
	}
}

// takeIdleLocked returns the most recently returned idle slot whose host
// satisfies the pool's TargetSessionAttributes, preferring a host matching
// the first-choice role for Prefer* targets (spec.md section 4.4). Must be
// called with p.mu held.
func (p *Pool) takeIdleLocked() *slot {
	if len(p.idle) == 0 {
		return nil
	}

	best := -1
	bestPreferred := false
	for i := len(p.idle) - 1; i >= 0; i-- {
		s := p.idle[i]
		host := p.cfg.Hosts[s.hostIdx]
		entry := globalHosts.get(host)
		role := entry.CurrentRole()
		if !satisfies(role, p.cfg.TargetSessionAttributes) {
			continue
		}
		preferred := preferredFirst(role, p.cfg.TargetSessionAttributes)
		if best < 0 || (preferred && !bestPreferred) {
			best, bestPreferred = i, preferred
			if preferred {
				break
			}
		}
	}
	if best < 0 {
		return nil
	}

	s := p.idle[best]
	p.idle = append(p.idle[:best], p.idle[best+1:]...)
	return s
}

func (p *Pool) chooseHostLocked() int {
	candidates := make([]int, 0, len(p.cfg.Hosts))
	for i, host := range p.cfg.Hosts {
		entry := globalHosts.get(host)
		if entry.Offline() {
			continue
		}
		if satisfies(entry.CurrentRole(), p.cfg.TargetSessionAttributes) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// Nothing is known to satisfy the target yet (roles unprobed); try
		// hosts in order and let ensureRole reject a bad pick post-connect.
		for i := range p.cfg.Hosts {
			candidates = append(candidates, i)
		}
	}

	if !p.cfg.LoadBalanceHosts || len(candidates) <= 1 {
		return candidates[0]
	}
	idx := candidates[p.rrIndex%len(candidates)]
	p.rrIndex++
	return idx
}

// ensureRole probes s's role via a lightweight query when the host-wide
// cache is stale and the pool cares about TargetSessionAttributes, then
// rejects the slot if it no longer satisfies the target. Must be called
// without p.mu held (it executes a query on the connector).
func (p *Pool) ensureRole(ctx context.Context, s *slot) error {
	if p.cfg.TargetSessionAttributes == connstring.TargetAny || p.cfg.TargetSessionAttributes == "" {
		return nil
	}
	host := p.cfg.Hosts[s.hostIdx]
	entry := globalHosts.get(host)
	if !entry.Stale(p.cfg.HostRecheckSeconds) {
		if satisfies(entry.CurrentRole(), p.cfg.TargetSessionAttributes) {
			return nil
		}
		return gausserr.ConfigurationInvalid("gausspool: host does not satisfy target_session_attrs")
	}

	role, err := probeRole(ctx, s.conn)
	if err != nil {
		return err
	}
	entry.UpdateRole(role)
	if !satisfies(role, p.cfg.TargetSessionAttributes) {
		return gausserr.ConfigurationInvalid("gausspool: host does not satisfy target_session_attrs")
	}
	return nil
}

// roleProbeQuery picks the role-detection statement for conn's server
// version: pg_is_in_recovery() is cheaper (no GUC lookup, no transaction
// context) and has been available since Postgres 9.0/the earliest openGauss
// releases, but SHOW transaction_read_only is kept as the fallback for any
// server that reports no parseable server_version at all.
func roleProbeQuery(conn *gaussconn.Connector) string {
	if conn.ServerVersionAtLeast("9.0.0") {
		return "SELECT pg_is_in_recovery()"
	}
	return "SHOW transaction_read_only"
}

// probeRole issues a role-detection statement through conn and classifies
// the result, per spec.md section 4.4's host-role probing.
func probeRole(ctx context.Context, conn *gaussconn.Connector) (HostRole, error) {
	stream, err := conn.Execute(ctx, roleProbeQuery(conn), nil)
	if err != nil {
		return RoleUnknown, err
	}
	result := ""
	for stream.Next() {
		vals := stream.Values()
		if len(vals) > 0 && vals[0] != nil {
			result = string(vals[0])
		}
	}
	if err := stream.Err(); err != nil {
		return RoleUnknown, err
	}
	if result == "on" || result == "t" || result == "true" {
		return RoleStandby, nil
	}
	return RolePrimary, nil
}

// Return implements spec.md section 4.4's return operation: DISCARD ALL
// (unless NoResetOnClose) to clear session state, then either drop the
// connector outright (broken, over ConnectionLifetime, or reset failed) or
// queue it idle and wake one waiter. Per spec.md section 3's invariant, a
// Broken connector is removed from pool accounting before any waiter is
// woken.
func (p *Pool) Return(ctx context.Context, conn *gaussconn.Connector, broken bool) {
	if !broken {
		if err := conn.Reset(ctx); err != nil {
			broken = true
		}
	}

	if p.cfg.Tracer != nil {
		p.cfg.Tracer.Release(conn.PID(), broken || conn.State() == gaussconn.Broken)
	}

	p.mu.Lock()
	defer func() {
		p.mu.Unlock()
		p.cond.Signal()
	}()

	idx := p.indexOfLocked(conn)
	if idx < 0 {
		return
	}
	s := p.all[idx]

	age := time.Since(s.openedAt)
	tooOld := p.cfg.ConnectionLifetime > 0 && age >= p.cfg.ConnectionLifetime

	p.busyCount--

	if broken || tooOld || conn.State() == gaussconn.Broken {
		p.removeLocked(idx)
		_ = conn.Terminate()
		return
	}

	s.idleAt = time.Now()
	p.idle = append(p.idle, s)
}

func (p *Pool) indexOfLocked(conn *gaussconn.Connector) int {
	for i, s := range p.all {
		if s.conn == conn {
			return i
		}
	}
	return -1
}

func (p *Pool) removeLocked(idx int) {
	s := p.all[idx]
	p.all = append(p.all[:idx], p.all[idx+1:]...)
	for i, is := range p.idle {
		if is == s {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
}

// pruneLoop implements spec.md section 4.4's Pruner: runs every
// ConnectionPruningInterval, closing connectors idle longer than
// ConnectionIdleLifetime while preserving at least MinPoolSize.
func (p *Pool) pruneLoop() {
	defer p.pruneWg.Done()
	ticker := time.NewTicker(p.cfg.ConnectionPruningInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.pruneStop:
			return
		case <-ticker.C:
			p.pruneOnce()
		}
	}
}

func (p *Pool) pruneOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	surplus := len(p.all) - p.cfg.MinPoolSize
	if surplus <= 0 {
		return
	}

	kept := p.idle[:0]
	for _, s := range p.idle {
		if surplus > 0 && time.Since(s.idleAt) > p.cfg.ConnectionIdleLifetime {
			idx := p.indexOfLocked(s.conn)
			if idx >= 0 {
				p.all = append(p.all[:idx], p.all[idx+1:]...)
			}
			_ = s.conn.Terminate()
			surplus--
			continue
		}
		kept = append(kept, s)
	}
	p.idle = kept
}

// Close implements spec.md section 4.4's teardown: stops the pruner and
// terminates every connector, idle or busy.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	all := append([]*slot(nil), p.all...)
	p.all = nil
	p.idle = nil
	p.mu.Unlock()

	close(p.pruneStop)
	p.pruneWg.Wait()

	for _, s := range all {
		_ = s.conn.Terminate()
	}
	p.cond.Broadcast()
}
