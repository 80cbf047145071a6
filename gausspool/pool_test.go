package gausspool

import (
	"testing"

	"github.com/opengauss-go/gaussconn/connstring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfiesTargetSessionAttributes(t *testing.T) {
	assert.True(t, satisfies(RolePrimary, connstring.TargetPrimary))
	assert.False(t, satisfies(RoleStandby, connstring.TargetPrimary))
	assert.True(t, satisfies(RoleStandby, connstring.TargetReadOnly))
	assert.True(t, satisfies(RolePrimary, connstring.TargetAny))
	assert.False(t, satisfies(RoleOffline, connstring.TargetAny))
}

func TestPreferredFirstFallsThroughToAny(t *testing.T) {
	assert.True(t, preferredFirst(RolePrimary, connstring.TargetPreferPrimary))
	assert.False(t, preferredFirst(RoleStandby, connstring.TargetPreferPrimary))
	assert.True(t, preferredFirst(RoleStandby, connstring.TargetPreferStandby))
}

func TestHostEntryStaleness(t *testing.T) {
	e := &HostEntry{}
	assert.True(t, e.Stale(30), "an unprobed entry is always stale")

	e.UpdateRole(RolePrimary)
	assert.False(t, e.Stale(0), "recheckSeconds=0 means never recheck after the first probe")
	assert.False(t, e.Stale(3600))
}

func TestHostEntryOfflineWindow(t *testing.T) {
	e := &HostEntry{}
	e.MarkOffline(3600)
	assert.True(t, e.Offline())
	assert.Equal(t, RoleOffline, e.CurrentRole())
}

func TestPoolStatsZeroValue(t *testing.T) {
	var p Pool
	require.Equal(t, Stats{Idle: 0, Busy: 0}, p.Stats())
}
