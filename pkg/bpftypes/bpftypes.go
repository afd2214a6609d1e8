// Package bpftypes defines the fixed-layout structs shared between the
// Go control plane and the BPF programs in pkg/bpf/c. Every type here
// mirrors a kernel-side struct byte for byte so cilium/ebpf map bindings
// and the C probe sources agree on layout.
package bpftypes

import "bytes"

// ContainerIDLen matches the zero-padded id buffer of struct container_id
// in pkg/bpf/c/lockc.h.
const ContainerIDLen = 64

// PathBufLen is the scratch buffer size used by the mount/open hooks to
// copy a path out of kernel memory without a verifier-rejected stack
// allocation.
const PathBufLen = 64

// MountTypeBufLen is the scratch buffer size for the mount fstype string.
const MountTypeBufLen = 5

// PIDMaxLimit bounds the processes table; it mirrors /proc/sys/kernel/pid_max
// on a 64-bit kernel.
const PIDMaxLimit = 32768

// ContainerID is a fixed-size, nul-padded container identifier.
type ContainerID [ContainerIDLen]byte

// NewContainerID builds a ContainerID from a string, truncating if the
// input is longer than ContainerIDLen bytes. An id of exactly
// ContainerIDLen bytes fills the buffer and has no terminating nul.
func NewContainerID(id string) ContainerID {
	var cid ContainerID
	n := copy(cid[:], id)
	_ = n
	return cid
}

// String returns the id with trailing zero bytes trimmed.
func (c ContainerID) String() string {
	return string(bytes.TrimRight(c[:], "\x00"))
}

// PolicyLevel is the access level assigned to a container. There is no
// self-exempting "Lockc" variant: lockcd never adds its own pid to the
// processes table, so its syscalls resolve via NotFound instead of a
// dedicated level (see DESIGN.md).
type PolicyLevel int32

const (
	// NotFound means no processes entry exists for the calling pid —
	// the process is not part of any tracked container.
	PolicyNotFound PolicyLevel = -1
	PolicyRestricted PolicyLevel = 0
	PolicyBaseline   PolicyLevel = 1
	PolicyPrivileged PolicyLevel = 2
)

func (p PolicyLevel) String() string {
	switch p {
	case PolicyNotFound:
		return "not-found"
	case PolicyRestricted:
		return "restricted"
	case PolicyBaseline:
		return "baseline"
	case PolicyPrivileged:
		return "privileged"
	default:
		return "unknown"
	}
}

// ParsePolicyLevel parses the config/CLI spelling of a policy level.
func ParsePolicyLevel(s string) (PolicyLevel, bool) {
	switch s {
	case "restricted":
		return PolicyRestricted, true
	case "baseline":
		return PolicyBaseline, true
	case "privileged":
		return PolicyPrivileged, true
	default:
		return PolicyNotFound, false
	}
}

// Container is the value type of the "containers" kernel table, keyed by
// ContainerID.
type Container struct {
	PolicyLevel PolicyLevel
	// InitialSetuidSeen marks that the container's very first process has
	// already made its one permitted setuid(0) call; further calls are
	// denied under Restricted/Baseline. Reset whenever the container is
	// deleted and re-added.
	InitialSetuidSeen bool
}

// Process is the value type of the "processes" table, keyed by pid.
type Process struct {
	ContainerID ContainerID
}

// MountTypeBuf is the per-CPU scratch buffer the sb_mount hook reads the
// filesystem type into.
type MountTypeBuf [MountTypeBufLen]byte

// PathBuf is the per-CPU scratch buffer the mount/open hooks read a path
// into.
type PathBuf [PathBufLen]byte

func (b PathBuf) String() string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

func (b MountTypeBuf) String() string {
	return string(bytes.TrimRight(b[:], "\x00"))
}
