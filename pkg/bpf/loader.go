// Package bpf loads and attaches lockc's kernel programs (pkg/bpf/c) and
// seeds the path-prefix tables the in-kernel hooks consult.
package bpf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/config"
	"github.com/lockc-project/lockc/pkg/log"
	"github.com/lockc-project/lockc/pkg/tables"
)

// DefaultPinDir is where every lockc map is pinned. Program links are not
// pinned: they live only as long as the Loader that attached them.
const DefaultPinDir = "/sys/fs/bpf/lockc"

// DefaultObjectPath is where the compiled BPF object produced from
// pkg/bpf/c is expected to live at daemon startup.
const DefaultObjectPath = "/usr/lib/lockc/lockc.bpf.o"

// lsmSysfsPath is a var so tests can point it at a fixture file.
var lsmSysfsPath = "/sys/kernel/security/lsm"

// envCheckLSMSkip bypasses CheckLSMSupported when set to a non-empty
// value, for nested/container deployments where sysctl visibility into
// the host's enabled LSMs is obscured.
const envCheckLSMSkip = "LOCKC_CHECK_LSM_SKIP"

// pathTableMaps maps a config.Paths field to its corresponding pinned
// BPF array map, in seed order.
var pathTableMaps = []string{
	"mount_allow_restricted",
	"mount_allow_baseline",
	"open_allow_restricted",
	"open_allow_baseline",
	"open_deny_restricted",
	"open_deny_baseline",
}

// CheckLSMSupported verifies the running kernel has the "bpf" LSM active
// among its enabled LSMs, without which none of lockc's programs can
// attach: bpf must be listed in /sys/kernel/security/lsm.
func CheckLSMSupported() error {
	data, err := os.ReadFile(lsmSysfsPath)
	if err != nil {
		return fmt.Errorf("bpf: read %s: %w", lsmSysfsPath, err)
	}
	for _, lsm := range bytes.Split(bytes.TrimSpace(data), []byte(",")) {
		if string(lsm) == "bpf" {
			return nil
		}
	}
	return fmt.Errorf("bpf: the \"bpf\" LSM is not enabled (got %q); add lsm=...,bpf to the kernel command line", string(data))
}

// checkLSMUnlessSkipped runs CheckLSMSupported unless envCheckLSMSkip is
// set, honoring the documented nested-deployment override.
func checkLSMUnlessSkipped() error {
	if os.Getenv(envCheckLSMSkip) != "" {
		log.WithComponent("bpf").Warn().Msg("LOCKC_CHECK_LSM_SKIP set, bypassing bpf LSM precheck")
		return nil
	}
	return CheckLSMSupported()
}

// Loader owns the lifetime of every attached program and pinned map.
type Loader struct {
	pinDir string
	coll   *ebpf.Collection
	links  []link.Link
}

// Load loads the compiled object at objectPath, pins its maps under
// pinDir (creating the directory if needed, reusing any maps already
// pinned there from a prior run so in-flight container state survives a
// lockcd restart), and seeds the path tables from paths.
func Load(objectPath, pinDir string, paths config.Paths) (*Loader, error) {
	if err := checkLSMUnlessSkipped(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(pinDir, 0o755); err != nil {
		return nil, fmt.Errorf("bpf: create pin dir: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, fmt.Errorf("bpf: load collection spec: %w", err)
	}

	// PinPath only applies to maps whose spec asks to be pinned by name.
	for _, m := range spec.Maps {
		m.Pinning = ebpf.PinByName
	}
	opts := ebpf.CollectionOptions{
		Maps: ebpf.MapOptions{PinPath: pinDir},
	}
	coll, err := ebpf.NewCollectionWithOptions(spec, opts)
	if err != nil {
		return nil, fmt.Errorf("bpf: load collection: %w", err)
	}

	l := &Loader{pinDir: pinDir, coll: coll}
	if err := l.seedPaths(paths); err != nil {
		l.Close()
		return nil, err
	}
	if err := l.attach(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Loader) seedPaths(paths config.Paths) error {
	groups := [][]string{
		paths.MountAllowRestricted,
		paths.MountAllowBaseline,
		paths.OpenAllowRestricted,
		paths.OpenAllowBaseline,
		paths.OpenDenyRestricted,
		paths.OpenDenyBaseline,
	}

	for i, mapName := range pathTableMaps {
		m, ok := l.coll.Maps[mapName]
		if !ok {
			return fmt.Errorf("bpf: collection missing map %q", mapName)
		}
		for idx, p := range groups[i] {
			var buf bpftypes.PathBuf
			copy(buf[:], p)
			if err := m.Put(uint32(idx), buf); err != nil {
				return fmt.Errorf("bpf: seed %s[%d]=%q: %w", mapName, idx, p, err)
			}
		}
		log.WithComponent("bpf").Debug().Str("map", mapName).Int("entries", len(groups[i])).Msg("path table seeded")
	}
	return nil
}

// tracepointPrograms and lsmPrograms list every program this loader
// attaches, grouped by attach mechanism.
var tracepointPrograms = map[string]string{
	"sched_process_fork": "sched_process_fork",
	"sched_process_exec": "sched_process_exec",
	"sched_process_exit": "sched_process_exit",
}

var lsmPrograms = []string{
	"syslog",
	"sb_mount",
	"task_fix_setuid",
	"file_open",
}

func (l *Loader) attach() error {
	for progName, tpName := range tracepointPrograms {
		prog, ok := l.coll.Programs[progName]
		if !ok {
			return fmt.Errorf("bpf: collection missing program %q", progName)
		}
		lk, err := link.Tracepoint("sched", tpName, prog, nil)
		if err != nil {
			return fmt.Errorf("bpf: attach tracepoint %s: %w", tpName, err)
		}
		l.links = append(l.links, lk)
	}

	for _, progName := range lsmPrograms {
		prog, ok := l.coll.Programs[progName]
		if !ok {
			return fmt.Errorf("bpf: collection missing program %q", progName)
		}
		lk, err := link.AttachLSM(link.LSMOptions{Program: prog})
		if err != nil {
			return fmt.Errorf("bpf: attach lsm %s: %w", progName, err)
		}
		l.links = append(l.links, lk)
	}
	return nil
}

// Tables returns a tables.Tables view over this loader's pinned maps.
func (l *Loader) Tables() (tables.Tables, error) {
	return tables.OpenPinned(l.pinDir)
}

// Close detaches every program and releases the collection. Pinned maps
// remain on disk (under l.pinDir) so a subsequent Load reuses existing
// container/process state rather than starting cold.
func (l *Loader) Close() error {
	for _, lk := range l.links {
		lk.Close()
	}
	if l.coll != nil {
		l.coll.Close()
	}
	return nil
}

// PinDirFor builds the conventional per-instance pin directory, letting
// tests and lockctl point at a non-default location.
func PinDirFor(base string) string {
	return filepath.Clean(base)
}
