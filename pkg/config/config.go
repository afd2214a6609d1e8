// Package config loads lockc's on-disk configuration: the list of
// recognized runtime binary paths and the allow/deny path-prefix tables
// the loader seeds into the kernel at startup. It is an external
// collaborator to the core: its only contract is the Paths struct.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the on-disk location merged on top of the
// built-in defaults.
const DefaultConfigPath = "/etc/lockc/lockc.yaml"

// Paths holds the path-prefix tables and runtime binary list. Implementers
// must expose the restricted and baseline sets independently rather than
// assume baseline is a superset of restricted — the two lists overlap
// heavily but are not formally nested (see DESIGN.md).
type Paths struct {
	// Runtimes lists the comm names of low-level runtime binaries (e.g.
	// "runc"). The watcher does not read this list: its dispatcher matches
	// the fixed comm names "runc" and "containerd-shim-runc-v2".
	Runtimes []string `yaml:"runtimes"`

	// RuntimeBinaryPaths lists the on-disk locations the watcher marks
	// with fanotify's FAN_OPEN_EXEC_PERM, covering both host and
	// container-visible (/host/... bind-mounted) paths.
	RuntimeBinaryPaths []string `yaml:"runtime_binary_paths"`

	// MountAllowRestricted/MountAllowBaseline are bind-mount source
	// prefixes allowed for containers at that policy level; every other
	// bind-mount source is denied.
	MountAllowRestricted []string `yaml:"mount_allow_restricted"`
	MountAllowBaseline   []string `yaml:"mount_allow_baseline"`

	// OpenAllowRestricted/OpenAllowBaseline are file_open carve-out
	// prefixes consulted before the deny list.
	OpenAllowRestricted []string `yaml:"open_allow_restricted"`
	OpenAllowBaseline   []string `yaml:"open_allow_baseline"`

	// OpenDenyRestricted/OpenDenyBaseline are file_open deny prefixes
	// consulted after the allow carve-out.
	OpenDenyRestricted []string `yaml:"open_deny_restricted"`
	OpenDenyBaseline   []string `yaml:"open_deny_baseline"`
}

// Load reads path, merging its contents on top of Default(). A missing
// file is not an error — the defaults alone are returned.
func Load(path string) (Paths, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Paths{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Paths{}, err
	}
	return cfg, nil
}

// Default returns the built-in path tables.
func Default() Paths {
	runtimeDirs := []string{
		"/dev/pts",
		"/var/lib/containers/storage",
		"/var/lib/docker/overlay2",
		"/var/run/container",
		"/run/containerd/io.containerd.runtime.v1.linux",
		"/var/lib/docker/containers",
		"/run/containerd/io.containerd.grpc.v1.cri/sandboxes",
		"/run/containerd/io.containerd.runtime.v2.task/k8s.io",
		"/sys/fs/cgroup/misc",
		"/sys/fs/cgroup/rdma",
		"/sys/fs/cgroup/blkio/machine.slice",
		"/sys/fs/cgroup/cpu,cpuacct/machine.slice",
		"/sys/fs/cgroup/cpuset/machine.slice",
		"/sys/fs/cgroup/devices/machine.slice",
		"/sys/fs/cgroup/freezer/machine.slice",
		"/sys/fs/cgroup/hugetlb/machine.slice",
		"/sys/fs/cgroup/memory/machine.slice",
		"/sys/fs/cgroup/net_cls,net_prio/machine.slice",
		"/sys/fs/cgroup/perf_event/machine.slice",
		"/sys/fs/cgroup/pids/machine.slice",
		"/sys/fs/cgroup/systemd/machine.slice",
		"/sys/fs/cgroup/unified/machine.slice",
		"/sys/fs/cgroup/blkio/kubepods.slice",
		"/sys/fs/cgroup/cpu,cpuacct/kubepods.slice",
		"/sys/fs/cgroup/cpuset/kubepods.slice",
		"/sys/fs/cgroup/devices/kubepods.slice",
		"/sys/fs/cgroup/freezer/kubepods.slice",
		"/sys/fs/cgroup/hugetlb/kubepods.slice",
		"/sys/fs/cgroup/memory/kubepods.slice",
		"/sys/fs/cgroup/net_cls,net_prio/kubepods.slice",
		"/sys/fs/cgroup/perf_event/kubepods.slice",
		"/sys/fs/cgroup/pids/kubepods.slice",
		"/sys/fs/cgroup/systemd/kubepods.slice",
		"/sys/fs/cgroup/unified/kubepods.slice",
		"/sys/fs/cgroup/blkio/docker",
		"/sys/fs/cgroup/cpu,cpuacct/docker",
		"/sys/fs/cgroup/cpuset/docker",
		"/sys/fs/cgroup/devices/docker",
		"/sys/fs/cgroup/freezer/docker",
		"/sys/fs/cgroup/hugetlb/docker",
		"/sys/fs/cgroup/memory/docker",
		"/sys/fs/cgroup/net_cls,net_prio/docker",
		"/sys/fs/cgroup/perf_event/docker",
		"/sys/fs/cgroup/pids/docker",
		"/sys/fs/cgroup/systemd/docker",
		"/sys/fs/cgroup/unified/docker",
		"/var/lib/kubelet/pods",
	}

	mountAllowBaseline := append(append([]string{}, runtimeDirs...), "/home", "/var/data", "/var/lib/docker")

	accessPaths := []string{
		"/bin",
		"/dev/console",
		"/dev/full",
		"/dev/null",
		"/dev/pts",
		"/dev/tty",
		"/dev/urandom",
		"/dev/zero",
		"/etc",
		"/home",
		"/lib",
		"/sys/devices",
		"/sys/fs/cgroup",
		"/sys/kernel/mm",
		"/tmp",
		"/usr",
		"/var",
	}

	return Paths{
		Runtimes: []string{"runc", "containerd-shim-runc-v2"},
		RuntimeBinaryPaths: []string{
			"/usr/bin/runc",
			"/usr/sbin/runc",
			"/usr/local/bin/runc",
			"/usr/local/sbin/runc",
			"/bin/runc",
			"/sbin/runc",
			"/host/usr/bin/runc",
			"/host/usr/sbin/runc",
			"/host/usr/local/bin/runc",
			"/host/usr/local/sbin/runc",
			"/host/bin/runc",
			"/host/sbin/runc",
			"/usr/bin/containerd-shim-runc-v2",
			"/host/usr/bin/containerd-shim-runc-v2",
		},
		MountAllowRestricted: runtimeDirs,
		MountAllowBaseline:   mountAllowBaseline,
		OpenAllowRestricted:  accessPaths,
		OpenAllowBaseline:    accessPaths,
		OpenDenyRestricted:   []string{"/proc/acpi"},
		OpenDenyBaseline:     []string{"/proc/acpi", "/proc/sys"},
	}
}
