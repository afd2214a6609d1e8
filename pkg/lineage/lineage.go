// Package lineage implements the process-lineage tracker: the Go-level
// reference mirror of pkg/bpf/c/lifecycle.c's sched_process_fork/exec/exit
// tracepoint handlers. It propagates a container's membership from a
// runtime-created process down to every descendant, and reaps entries on
// exit.
package lineage

import (
	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/tables"
)

// Tracker applies fork/exec/exit events to a Tables backend.
type Tracker struct {
	Tables tables.Tables
}

// NewTracker builds a Tracker over the given tables.
func NewTracker(t tables.Tables) *Tracker {
	return &Tracker{Tables: t}
}

// handleNewProcess registers pid under the same container as ppid, if
// ppid is itself containerized and pid isn't already registered. It is a
// no-op for both an uncontainerized parent and an already-tracked child.
func (tr *Tracker) handleNewProcess(ppid, pid int32) error {
	parent, err := tr.Tables.GetProcess(ppid)
	if err != nil {
		if err == tables.ErrNotFound {
			return nil
		}
		return err
	}

	if _, err := tr.Tables.GetProcess(pid); err == nil {
		return nil
	} else if err != tables.ErrNotFound {
		return err
	}

	return tr.Tables.AddProcess(pid, parent.ContainerID)
}

// OnFork mirrors sched_process_fork: propagate container membership from
// parent to child.
func (tr *Tracker) OnFork(ppid, pid int32) error {
	return tr.handleNewProcess(ppid, pid)
}

// OnExec mirrors sched_process_exec: same propagation, keyed by the
// exec'ing task's own parent rather than the forking parent (the two
// converge on the same semantics for a fully lineage-tracked process).
func (tr *Tracker) OnExec(ppid, pid int32) error {
	return tr.handleNewProcess(ppid, pid)
}

// OnExit mirrors sched_process_exit: remove pid's entry unconditionally.
// Removing an entry that was never tracked is not an error.
func (tr *Tracker) OnExit(pid int32) error {
	return tr.Tables.DeleteProcess(pid)
}

// SeedContainer registers a container's first process directly — used by
// the control plane when the watcher detects a new container, since that
// first process has no containerized parent for OnFork/OnExec to key off.
func (tr *Tracker) SeedContainer(pid int32, containerID bpftypes.ContainerID) error {
	return tr.Tables.AddProcess(pid, containerID)
}
