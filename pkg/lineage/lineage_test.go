package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/tables"
)

// S6 - fork propagates container membership to a child pid.
func TestOnForkPropagatesContainerMembership(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	c := bpftypes.NewContainerID("C6")
	require.NoError(t, tb.AddContainer(c, bpftypes.PolicyBaseline))
	require.NoError(t, tr.SeedContainer(2000, c))

	require.NoError(t, tr.OnFork(2000, 2001))

	p, err := tb.GetProcess(2001)
	require.NoError(t, err)
	assert.Equal(t, c, p.ContainerID)
}

// S7 - exec on a grandchild still resolves to the same container.
func TestOnExecPropagatesThroughLineage(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	c := bpftypes.NewContainerID("C7")
	require.NoError(t, tb.AddContainer(c, bpftypes.PolicyBaseline))
	require.NoError(t, tr.SeedContainer(3000, c))
	require.NoError(t, tr.OnFork(3000, 3001))

	require.NoError(t, tr.OnExec(3001, 3002))

	p, err := tb.GetProcess(3002)
	require.NoError(t, err)
	assert.Equal(t, c, p.ContainerID)
}

func TestHandleNewProcessIgnoresUncontainerizedParent(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)

	require.NoError(t, tr.OnFork(1, 50000))

	_, err := tb.GetProcess(50000)
	assert.ErrorIs(t, err, tables.ErrNotFound)
}

func TestHandleNewProcessSkipsAlreadyRegisteredChild(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	c := bpftypes.NewContainerID("C1")
	other := bpftypes.NewContainerID("C-other")
	require.NoError(t, tb.AddContainer(c, bpftypes.PolicyBaseline))
	require.NoError(t, tr.SeedContainer(100, c))
	require.NoError(t, tb.AddProcess(101, other))

	require.NoError(t, tr.OnFork(100, 101))

	p, err := tb.GetProcess(101)
	require.NoError(t, err)
	assert.Equal(t, other, p.ContainerID, "already-registered child keeps its own container")
}

// Invariant 1: every process under a container resolves to that
// container's policy level transitively through lineage.
func TestLineageInvariantTransitiveMembership(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	c := bpftypes.NewContainerID("C1")
	require.NoError(t, tb.AddContainer(c, bpftypes.PolicyRestricted))
	require.NoError(t, tr.SeedContainer(1, c))

	pid := int32(1)
	for i := 0; i < 5; i++ {
		child := pid + 1
		require.NoError(t, tr.OnFork(pid, child))
		pid = child
	}

	p, err := tb.GetProcess(pid)
	require.NoError(t, err)
	assert.Equal(t, c, p.ContainerID)
}

func TestOnExitReapsEntry(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	c := bpftypes.NewContainerID("C5")
	require.NoError(t, tb.AddContainer(c, bpftypes.PolicyBaseline))
	require.NoError(t, tr.SeedContainer(2002, c))

	require.NoError(t, tr.OnExit(2002))

	_, err := tb.GetProcess(2002)
	assert.ErrorIs(t, err, tables.ErrNotFound)
}

func TestOnExitOfUntrackedPidIsNotAnError(t *testing.T) {
	tb := tables.NewMemTables()
	tr := NewTracker(tb)
	assert.NoError(t, tr.OnExit(99999))
}
