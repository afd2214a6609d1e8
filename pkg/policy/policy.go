// Package policy implements lockc's security-hook decision logic: the
// Go-level reference mirror of what pkg/bpf/c/hooks.c does in the kernel
// for syslog, sb_mount, task_fix_setuid and file_open. Both the mirror
// and the real BPF programs consult the same tables.Tables state, so the
// same test suite exercises either backend.
package policy

import (
	"strings"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/config"
	"github.com/lockc-project/lockc/pkg/tables"
)

// Decision is the outcome of a hook evaluation. It never carries a Go
// error back to a caller that must respond to the kernel — ambiguous or
// inconsistent state always resolves to an explicit Deny with Err set,
// matching a 0=allow, negative=deny return-value convention.
type Decision struct {
	Allow bool
	// Err is non-nil only for the ErrInconsistent case: a process
	// referencing a container with no record. It is still a Deny.
	Err error
}

func allow() Decision { return Decision{Allow: true} }
func deny() Decision  { return Decision{Allow: false} }

// Engine evaluates hook decisions against a Tables backend and the
// configured allow/deny path-prefix sets.
type Engine struct {
	Tables tables.Tables
	Paths  config.Paths
}

// NewEngine builds an Engine over the given tables and path configuration.
func NewEngine(t tables.Tables, paths config.Paths) *Engine {
	return &Engine{Tables: t, Paths: paths}
}

// resolve centralizes the "NotFound/Privileged always allow, inconsistent
// state is a hard deny" prelude shared by every hook.
func (e *Engine) resolve(pid int32) (level bpftypes.PolicyLevel, containerID bpftypes.ContainerID, shortCircuit *Decision) {
	level, containerID, err := e.Tables.ResolvePolicy(pid)
	if err != nil {
		d := deny()
		d.Err = err
		return level, containerID, &d
	}
	switch level {
	case bpftypes.PolicyNotFound, bpftypes.PolicyPrivileged:
		d := allow()
		return level, containerID, &d
	}
	return level, containerID, nil
}

// Syslog implements the syslog hook: deny for Restricted/Baseline, allow
// otherwise.
func (e *Engine) Syslog(pid int32) Decision {
	level, _, sc := e.resolve(pid)
	if sc != nil {
		return *sc
	}
	switch level {
	case bpftypes.PolicyRestricted, bpftypes.PolicyBaseline:
		return deny()
	default:
		return allow()
	}
}

// SbMount implements the sb_mount hook. Only "bind"-prefixed mount types
// are evaluated; any other type defaults to allow. A bind mount is
// allowed if its source matches a configured allow prefix for the
// container's policy level, denied otherwise.
func (e *Engine) SbMount(pid int32, mountType, source string) Decision {
	level, _, sc := e.resolve(pid)
	if sc != nil {
		return *sc
	}

	if !strings.HasPrefix(mountType, "bind") {
		return allow()
	}

	var allowPrefixes []string
	switch level {
	case bpftypes.PolicyRestricted:
		allowPrefixes = e.Paths.MountAllowRestricted
	case bpftypes.PolicyBaseline:
		allowPrefixes = e.Paths.MountAllowBaseline
	default:
		return allow()
	}

	if hasAnyPrefix(source, allowPrefixes) {
		return allow()
	}
	return deny()
}

// TaskFixSetuid implements the task_fix_setuid hook: the first setuid
// call observed for a container is recorded and allowed unconditionally;
// every subsequent setuid call to uid 0 is denied.
func (e *Engine) TaskFixSetuid(pid int32, newUID uint32) Decision {
	level, containerID, sc := e.resolve(pid)
	if sc != nil {
		return *sc
	}
	if level != bpftypes.PolicyRestricted && level != bpftypes.PolicyBaseline {
		return allow()
	}

	seen, err := e.Tables.CheckInitialSetuid(containerID)
	if err != nil {
		d := deny()
		d.Err = err
		return d
	}
	if !seen {
		// This is the one free setuid call; always allowed regardless
		// of target uid.
		return allow()
	}
	if newUID == 0 {
		return deny()
	}
	return allow()
}

// FileOpen implements the file_open hook. The configured allow carve-out
// is consulted first, then the deny list, defaulting to allow — matching
// that ordering.
func (e *Engine) FileOpen(pid int32, path string) Decision {
	level, _, sc := e.resolve(pid)
	if sc != nil {
		return *sc
	}

	var allowPrefixes, denyPrefixes []string
	switch level {
	case bpftypes.PolicyRestricted:
		allowPrefixes, denyPrefixes = e.Paths.OpenAllowRestricted, e.Paths.OpenDenyRestricted
	case bpftypes.PolicyBaseline:
		allowPrefixes, denyPrefixes = e.Paths.OpenAllowBaseline, e.Paths.OpenDenyBaseline
	default:
		return allow()
	}

	if hasAnyPrefix(path, allowPrefixes) {
		return allow()
	}
	if hasAnyPrefix(path, denyPrefixes) {
		return deny()
	}
	return allow()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
