// Package runtimewatcher intercepts runc and containerd-shim invocations
// via fanotify's FAN_OPEN_EXEC_PERM, parses their argv to classify the
// invocation as a container create/delete, resolves the container's
// policy, and pushes the result through the control plane before
// releasing the held execution.
package runtimewatcher

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lockc-project/lockc/pkg/argvparse"
	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/controlplane"
	"github.com/lockc-project/lockc/pkg/log"
	"github.com/lockc-project/lockc/pkg/resolver"
)

const containerdShimComm = "containerd-shim-runc-v2"

// Dispatcher holds the logic triggered on every intercepted runtime
// execution: parse argv, resolve policy, submit a control-plane command,
// and only then let the caller release the held execution. It has no
// fanotify dependency of its own so it can be exercised without a real
// kernel or root privileges.
type Dispatcher struct {
	Resolver   resolver.Resolver
	Maintainer *controlplane.Maintainer

	// ownPID is skipped so lockcd's own forks/execs never feed back into
	// itself.
	ownPID int
}

// NewDispatcher builds a Dispatcher bound to a policy resolver and the
// control-plane maintainer that owns the kernel tables.
func NewDispatcher(r resolver.Resolver, m *controlplane.Maintainer) *Dispatcher {
	return &Dispatcher{Resolver: r, Maintainer: m, ownPID: os.Getpid()}
}

// HandleExec is invoked once per FAN_OPEN_EXEC_PERM event, after the
// caller has already confirmed the executing binary is a recognized
// runtime. It returns only once the relevant control-plane command (if
// any) has been applied and acknowledged — the caller must not release
// the held execution before this returns.
func (d *Dispatcher) HandleExec(ctx context.Context, pid int, comm string, cmdline []string) error {
	if pid == d.ownPID {
		return nil
	}
	if len(cmdline) == 0 {
		return nil
	}

	var result argvparse.Result
	switch comm {
	case containerdShimComm:
		result = argvparse.ParseContainerdShim(cmdline[1:])
	default:
		// runc re-executes itself via unix.Exec after containerd-shim
		// launches it, so fanotify sees one event per hop; only the
		// hop whose comm is actually "runc" carries the real argv.
		if comm != "runc" {
			return nil
		}
		result = argvparse.ParseRunc(cmdline[1:])
	}

	switch result.Action {
	case argvparse.ActionCreate:
		return d.handleCreate(ctx, pid, result)
	case argvparse.ActionDelete:
		return d.handleDelete(ctx, result)
	default:
		if result.ContainerID == "" {
			return nil
		}
		return d.handleOther(ctx, pid, result)
	}
}

func (d *Dispatcher) handleCreate(ctx context.Context, pid int, result argvparse.Result) error {
	bundle := result.Bundle
	if bundle == "" {
		// runc defaults --bundle to the process's cwd when the flag is
		// omitted; follow the same convention by reading it back.
		cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
		if err != nil {
			return fmt.Errorf("runtimewatcher: resolve create bundle: %w", err)
		}
		bundle = cwd
	}

	containerID := bpftypes.NewContainerID(result.ContainerID)
	level := d.Resolver.Resolve(ctx, bundle)

	log.WithContainer(result.ContainerID).Info().
		Int("pid", pid).Str("bundle", bundle).Str("policy", level.String()).
		Msg("container create intercepted")

	return d.Maintainer.Submit(ctx, controlplane.AddContainerCommand(containerID, int32(pid), level))
}

func (d *Dispatcher) handleDelete(ctx context.Context, result argvparse.Result) error {
	containerID := bpftypes.NewContainerID(result.ContainerID)
	log.WithContainer(result.ContainerID).Info().Msg("container delete intercepted")
	return d.Maintainer.Submit(ctx, controlplane.DeleteContainerCommand(containerID))
}

func (d *Dispatcher) handleOther(ctx context.Context, pid int, result argvparse.Result) error {
	containerID := bpftypes.NewContainerID(result.ContainerID)
	return d.Maintainer.Submit(ctx, controlplane.AddProcessCommand(containerID, int32(pid)))
}

// commFromPid reads the process' comm, as set by execve, trimming the
// trailing newline procfs appends.
func commFromPid(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// cmdlineFromPid reads the process' argv from procfs, splitting on the
// NUL separators the kernel uses in /proc/<pid>/cmdline.
func cmdlineFromPid(pid int) ([]string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return nil, err
	}
	parts := strings.Split(strings.TrimSuffix(string(data), "\x00"), "\x00")
	if len(parts) == 1 && parts[0] == "" {
		return nil, nil
	}
	return parts, nil
}
