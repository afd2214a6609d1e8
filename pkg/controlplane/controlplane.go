// Package controlplane bridges the synchronous fanotify watcher thread to
// an asynchronous kernel-table maintainer goroutine. The watcher issues
// Commands over a bounded channel and blocks on each Command's reply
// before releasing the held runtime execution; the Maintainer drains the
// channel in FIFO order and applies every Command to tables.Tables (and,
// for process commands, pkg/lineage) exactly once.
package controlplane

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/events"
	"github.com/lockc-project/lockc/pkg/lineage"
	"github.com/lockc-project/lockc/pkg/log"
	"github.com/lockc-project/lockc/pkg/tables"
)

// Op identifies the kind of table mutation a Command requests.
type Op string

const (
	OpAddContainer    Op = "add_container"
	OpDeleteContainer Op = "delete_container"
	OpAddProcess      Op = "add_process"
)

// Command is a single map mutation request, carrying its own reply slot
// so the issuing watcher thread can block for the acknowledgement before
// sending the kernel its allow response.
type Command struct {
	ID          string
	Op          Op
	ContainerID bpftypes.ContainerID
	PID         int32
	PolicyLevel bpftypes.PolicyLevel

	reply chan error
}

// newCommand stamps a Command with a correlation id and its reply channel.
func newCommand(op Op) Command {
	return Command{ID: uuid.NewString(), Op: op, reply: make(chan error, 1)}
}

// AddContainerCommand builds a Command registering a new container and
// its first process in one request.
func AddContainerCommand(containerID bpftypes.ContainerID, pid int32, level bpftypes.PolicyLevel) Command {
	c := newCommand(OpAddContainer)
	c.ContainerID = containerID
	c.PID = pid
	c.PolicyLevel = level
	return c
}

// DeleteContainerCommand builds a Command removing a container.
func DeleteContainerCommand(containerID bpftypes.ContainerID) Command {
	c := newCommand(OpDeleteContainer)
	c.ContainerID = containerID
	return c
}

// AddProcessCommand builds a Command registering pid under an existing
// container (used by the lineage tracker's SeedContainer path when the
// watcher itself observes the pid before the kernel fork hook does).
func AddProcessCommand(containerID bpftypes.ContainerID, pid int32) Command {
	c := newCommand(OpAddProcess)
	c.ContainerID = containerID
	c.PID = pid
	return c
}

// Maintainer owns the kernel tables and serializes every mutation through
// a single goroutine, so concurrent watcher dispatches never race on
// table writes.
type Maintainer struct {
	tables  tables.Tables
	lineage *lineage.Tracker
	queue   chan Command

	// events, if set, receives a notification for every successfully
	// applied container mutation. Nil disables publishing entirely.
	events *events.Broker
}

// NewMaintainer builds a Maintainer with a bounded command queue of the
// given capacity.
func NewMaintainer(t tables.Tables, capacity int) *Maintainer {
	return &Maintainer{
		tables:  t,
		lineage: lineage.NewTracker(t),
		queue:   make(chan Command, capacity),
	}
}

// WithEvents attaches an event broker; every subsequent apply publishes
// to it. Returns the Maintainer for chaining off NewMaintainer.
func (m *Maintainer) WithEvents(b *events.Broker) *Maintainer {
	m.events = b
	return m
}

// Submit enqueues cmd and blocks until the Maintainer has applied it,
// returning its result. Callers on the watcher thread call this
// synchronously between "parse argv" and "send allow to kernel".
func (m *Maintainer) Submit(ctx context.Context, cmd Command) error {
	select {
	case m.queue <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the command queue in FIFO order until it is closed, applying
// each Command to the tables exactly once. Call Stop to trigger a clean
// shutdown; Run then drains any already-queued commands before returning.
func (m *Maintainer) Run(ctx context.Context) {
	for {
		select {
		case cmd, ok := <-m.queue:
			if !ok {
				return
			}
			m.apply(cmd)
		case <-ctx.Done():
			m.drain()
			return
		}
	}
}

// Stop closes the command queue; Run observes the close and returns after
// draining whatever was already enqueued.
func (m *Maintainer) Stop() {
	close(m.queue)
}

// drain applies every command already buffered in the queue and returns
// once the queue is empty or closed, without waiting for new ones.
func (m *Maintainer) drain() {
	for {
		select {
		case cmd, ok := <-m.queue:
			if !ok {
				return
			}
			m.apply(cmd)
		default:
			return
		}
	}
}

func (m *Maintainer) apply(cmd Command) {
	var err error
	switch cmd.Op {
	case OpAddContainer:
		if err = m.tables.AddContainer(cmd.ContainerID, cmd.PolicyLevel); err == nil {
			err = m.lineage.SeedContainer(cmd.PID, cmd.ContainerID)
		}
	case OpDeleteContainer:
		err = m.tables.DeleteContainer(cmd.ContainerID)
	case OpAddProcess:
		// Idempotent: re-applying the same command is a benign no-op.
		err = m.lineage.SeedContainer(cmd.PID, cmd.ContainerID)
	default:
		err = fmt.Errorf("controlplane: unknown op %q", cmd.Op)
	}

	if err != nil {
		log.WithComponent("controlplane").Error().
			Err(err).Str("cmd_id", cmd.ID).Str("op", string(cmd.Op)).
			Msg("command failed")
	} else {
		m.publish(cmd)
	}
	cmd.reply <- err
}

func (m *Maintainer) publish(cmd Command) {
	if m.events == nil {
		return
	}

	var evType events.Type
	switch cmd.Op {
	case OpAddContainer:
		evType = events.TypeContainerCreated
	case OpDeleteContainer:
		evType = events.TypeContainerDeleted
	default:
		return
	}

	m.events.Publish(&events.Event{
		ID:          cmd.ID,
		Type:        evType,
		ContainerID: cmd.ContainerID.String(),
		PolicyLevel: cmd.PolicyLevel.String(),
	})
}
