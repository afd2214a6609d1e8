// Package tables defines the Tables interface over lockc's kernel-resident
// maps (containers, processes, container_initial_setuid) and provides two
// implementations: BPFTables, backed by real pinned eBPF maps, and
// MemTables, an in-memory fake used by unit tests and by the Go-level
// policy/lineage reference mirrors.
package tables

import (
	"errors"
	"fmt"

	"github.com/lockc-project/lockc/pkg/bpftypes"
)

// ErrNotFound is returned when a lookup misses. Hook callers translate
// this into the NotFound sentinel policy level, never into a deny.
var ErrNotFound = errors.New("tables: not found")

// ErrInconsistent flags a process entry whose container record is
// missing — a map inconsistency that must surface as a hard deny with a
// distinct error, not a silent allow.
var ErrInconsistent = errors.New("tables: process references missing container")

// Tables is the interface the policy/lineage reference implementations
// and the runtime watcher use to read and mutate the kernel-resident
// state. BPFTables and MemTables both satisfy it.
type Tables interface {
	// AddContainer registers a container at the given policy level.
	// Re-adding an existing container id resets InitialSetuidSeen.
	AddContainer(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error
	// DeleteContainer removes a container record and every processes
	// entry that references it, so future lookups of those pids resolve
	// to NotFound.
	DeleteContainer(id bpftypes.ContainerID) error
	// SetPolicyLevel reassigns a running container's policy level without
	// a restart (lockctl's apply-policy operation).
	SetPolicyLevel(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error
	// GetContainer returns ErrNotFound if id is not registered.
	GetContainer(id bpftypes.ContainerID) (bpftypes.Container, error)
	// ListContainers returns every registered container keyed by id.
	ListContainers() (map[bpftypes.ContainerID]bpftypes.Container, error)

	// AddProcess registers pid as belonging to container id. Adding the
	// same (pid, id) pair twice is a no-op success.
	AddProcess(pid int32, id bpftypes.ContainerID) error
	// DeleteProcess removes a single pid entry (used by the exit hook).
	DeleteProcess(pid int32) error
	// GetProcess returns ErrNotFound if pid has no entry.
	GetProcess(pid int32) (bpftypes.Process, error)
	// ListProcesses returns every tracked pid->container mapping.
	ListProcesses() (map[int32]bpftypes.Process, error)

	// ResolvePolicy looks up pid's container and policy level in one
	// call, the operation every security hook performs. It returns
	// PolicyNotFound (not an error) when pid has no process entry, and
	// ErrInconsistent when pid maps to a container id with no container
	// record.
	ResolvePolicy(pid int32) (bpftypes.PolicyLevel, bpftypes.ContainerID, error)

	// CheckInitialSetuid implements the "one free setuid" invariant: the
	// first call for a given container id is recorded and allowed; every
	// subsequent call reports seen=true.
	CheckInitialSetuid(id bpftypes.ContainerID) (seen bool, err error)

	// Close releases any underlying OS resources (pinned map handles).
	Close() error
}

// resolvePolicyGeneric is shared by both implementations so the
// NotFound/ErrInconsistent contract can't drift between them.
func resolvePolicyGeneric(t Tables, pid int32) (bpftypes.PolicyLevel, bpftypes.ContainerID, error) {
	proc, err := t.GetProcess(pid)
	if errors.Is(err, ErrNotFound) {
		return bpftypes.PolicyNotFound, bpftypes.ContainerID{}, nil
	}
	if err != nil {
		return bpftypes.PolicyNotFound, bpftypes.ContainerID{}, err
	}

	c, err := t.GetContainer(proc.ContainerID)
	if errors.Is(err, ErrNotFound) {
		return bpftypes.PolicyNotFound, proc.ContainerID, fmt.Errorf("%w: pid=%d container=%s", ErrInconsistent, pid, proc.ContainerID)
	}
	if err != nil {
		return bpftypes.PolicyNotFound, proc.ContainerID, err
	}
	return c.PolicyLevel, proc.ContainerID, nil
}
