package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/config"
	"github.com/lockc-project/lockc/pkg/tables"
)

func newEngine(t *testing.T) (*Engine, tables.Tables) {
	t.Helper()
	tb := tables.NewMemTables()
	return NewEngine(tb, config.Default()), tb
}

// S1 - Baseline denies bind mount.
func TestBaselineDeniesBindMount(t *testing.T) {
	e, tb := newEngine(t)
	c1 := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c1, bpftypes.PolicyBaseline))
	require.NoError(t, tb.AddProcess(1001, c1))

	d := e.SbMount(1001, "bind", "/tmp/evil")
	assert.False(t, d.Allow)
}

// S2 - Baseline allows whitelisted bind mount.
func TestBaselineAllowsWhitelistedBindMount(t *testing.T) {
	e, tb := newEngine(t)
	c1 := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c1, bpftypes.PolicyBaseline))
	require.NoError(t, tb.AddProcess(1001, c1))

	d := e.SbMount(1001, "bind", "/var/lib/docker/foo")
	assert.True(t, d.Allow)
}

// S3 - Restricted denies syslog.
func TestRestrictedDeniesSyslog(t *testing.T) {
	e, tb := newEngine(t)
	c2 := bpftypes.NewContainerID("C2")
	require.NoError(t, tb.AddContainer(c2, bpftypes.PolicyRestricted))
	require.NoError(t, tb.AddProcess(1002, c2))

	d := e.Syslog(1002)
	assert.False(t, d.Allow)
}

// S4 - Privileged overrides.
func TestPrivilegedOverridesFileOpen(t *testing.T) {
	e, tb := newEngine(t)
	c3 := bpftypes.NewContainerID("C3")
	require.NoError(t, tb.AddContainer(c3, bpftypes.PolicyPrivileged))
	require.NoError(t, tb.AddProcess(1003, c3))

	d := e.FileOpen(1003, "/sys/fs/cgroup/x")
	assert.True(t, d.Allow)
}

// S5 - Setuid invariant.
func TestSetuidInvariant(t *testing.T) {
	e, tb := newEngine(t)
	c4 := bpftypes.NewContainerID("C4")
	require.NoError(t, tb.AddContainer(c4, bpftypes.PolicyBaseline))
	require.NoError(t, tb.AddProcess(1004, c4))

	first := e.TaskFixSetuid(1004, 1000)
	assert.True(t, first.Allow)

	second := e.TaskFixSetuid(1004, 0)
	assert.False(t, second.Allow)
}

// S8 - Uncontainerized host process.
func TestUncontainerizedProcessAlwaysAllowed(t *testing.T) {
	e, _ := newEngine(t)

	assert.True(t, e.Syslog(1).Allow)
	assert.True(t, e.SbMount(1, "bind", "/tmp/evil").Allow)
	assert.True(t, e.FileOpen(1, "/proc/acpi").Allow)
	assert.True(t, e.TaskFixSetuid(1, 0).Allow)
}

func TestInconsistentProcessIsHardDeny(t *testing.T) {
	e, tb := newEngine(t)
	orphan := bpftypes.NewContainerID("ghost")
	require.NoError(t, tb.AddProcess(99, orphan))

	d := e.Syslog(99)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, d.Err, tables.ErrInconsistent)
}

func TestNonBindMountAlwaysAllowed(t *testing.T) {
	e, tb := newEngine(t)
	c1 := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c1, bpftypes.PolicyRestricted))
	require.NoError(t, tb.AddProcess(1001, c1))

	d := e.SbMount(1001, "overlay", "/anything")
	assert.True(t, d.Allow)
}

func TestFileOpenDenyListForBaseline(t *testing.T) {
	e, tb := newEngine(t)
	c1 := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c1, bpftypes.PolicyBaseline))
	require.NoError(t, tb.AddProcess(1001, c1))

	assert.False(t, e.FileOpen(1001, "/proc/sys/kernel").Allow)
	assert.True(t, e.FileOpen(1001, "/sys/fs/cgroup/memory").Allow)
}

func TestRestrictedSyslogDeniedBaselineAllowedAfterReassign(t *testing.T) {
	e, tb := newEngine(t)
	c1 := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c1, bpftypes.PolicyRestricted))
	require.NoError(t, tb.AddProcess(1001, c1))
	require.False(t, e.Syslog(1001).Allow)

	require.NoError(t, tb.SetPolicyLevel(c1, bpftypes.PolicyPrivileged))
	assert.True(t, e.Syslog(1001).Allow)
}
