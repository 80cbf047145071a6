package gausspool

import (
	"sync"
	"time"

	"github.com/opengauss-go/gaussconn/connstring"
)

// HostRole is a cached classification of a host's replication role.
type HostRole int

const (
	RoleUnknown HostRole = iota
	RolePrimary
	RoleStandby
	RoleOffline
)

// HostEntry is spec.md section 3's HostEntry entity: host+port, cached
// role, and last-check timestamp, shared across every pool that targets
// the same host.
type HostEntry struct {
	mu        sync.Mutex
	HostPort  connstring.HostPort
	Role      HostRole
	CheckedAt time.Time
	offlineTil time.Time
}

// hostSet is the process-wide registry of HostEntry values, one per
// distinct host across all pools (spec.md section 3 "HostEntry ... shared;
// mutated under lock"). Per spec.md Design Notes section 9's "global
// counter state" guidance, it is a lazily-initialized, re-entrancy-
// tolerant registry rather than a per-pool map.
type hostSet struct {
	mu      sync.Mutex
	entries map[string]*HostEntry
}

var globalHosts = &hostSet{entries: make(map[string]*HostEntry)}

func hostKey(hp connstring.HostPort) string {
	return hp.Host + ":" + hostPortString(hp.Port)
}

func hostPortString(port uint16) string {
	const digits = "0123456789"
	if port == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for port > 0 {
		i--
		buf[i] = digits[port%10]
		port /= 10
	}
	return string(buf[i:])
}

func (s *hostSet) get(hp connstring.HostPort) *HostEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hostKey(hp)
	e, ok := s.entries[key]
	if !ok {
		e = &HostEntry{HostPort: hp}
		s.entries[key] = e
	}
	return e
}

// Stale reports whether this entry's role needs rechecking, per
// HostRecheckSeconds (0 means "never recheck after the first probe").
func (e *HostEntry) Stale(recheckSeconds int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Role == RoleUnknown {
		return true
	}
	if recheckSeconds == 0 {
		return false
	}
	return time.Since(e.CheckedAt) >= time.Duration(recheckSeconds)*time.Second
}

// UpdateRole records a probe result.
func (e *HostEntry) UpdateRole(role HostRole) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Role = role
	e.CheckedAt = time.Now()
}

// MarkOffline marks the host unusable for recheckSeconds, per spec.md
// section 4.4 "Failure semantics": connection-refused marks a host Offline
// for HostRecheckSeconds.
func (e *HostEntry) MarkOffline(recheckSeconds int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Role = RoleOffline
	e.CheckedAt = time.Now()
	e.offlineTil = time.Now().Add(time.Duration(recheckSeconds) * time.Second)
}

// Offline reports whether the host is still within its offline window.
func (e *HostEntry) Offline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Role == RoleOffline && time.Now().Before(e.offlineTil)
}

// CurrentRole returns the cached role without triggering a probe.
func (e *HostEntry) CurrentRole() HostRole {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Role
}

// satisfies reports whether role matches the requested
// TargetSessionAttributes, falling through PreferPrimary/PreferStandby to
// Any when the preferred kind is unavailable (spec.md section 4.4).
func satisfies(role HostRole, target connstring.TargetSessionAttributes) bool {
	switch target {
	case connstring.TargetPrimary, connstring.TargetReadWrite:
		return role == RolePrimary
	case connstring.TargetStandby, connstring.TargetReadOnly:
		return role == RoleStandby
	case connstring.TargetPreferPrimary, connstring.TargetPreferStandby, connstring.TargetAny, "":
		return role != RoleOffline
	default:
		return role != RoleOffline
	}
}

// preferredFirst reports whether role is this target's first preference,
// used to order candidate hosts before falling through to Any.
func preferredFirst(role HostRole, target connstring.TargetSessionAttributes) bool {
	switch target {
	case connstring.TargetPreferPrimary:
		return role == RolePrimary
	case connstring.TargetPreferStandby:
		return role == RoleStandby
	default:
		return satisfies(role, target)
	}
}
