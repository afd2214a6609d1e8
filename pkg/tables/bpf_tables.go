package tables

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/lockc-project/lockc/pkg/bpftypes"
)

// Map names, shared with pkg/bpf/c/lockc.h — the loader pins these at
// /sys/fs/bpf/lockc/<name> and BPFTables opens them by that path.
const (
	MapContainers             = "containers"
	MapProcesses              = "processes"
	MapContainerInitialSetuid = "container_initial_setuid"
)

// BPFTables is the production Tables implementation, backed by pinned
// eBPF hash maps the kernel-side probes read directly.
type BPFTables struct {
	containers    *ebpf.Map
	processes     *ebpf.Map
	initialSetuid *ebpf.Map
}

// NewBPFTables wraps already-opened pinned maps. Callers typically obtain
// these from a bpf.Loader, which pins them under pinDir at attach time.
func NewBPFTables(containers, processes, initialSetuid *ebpf.Map) *BPFTables {
	return &BPFTables{
		containers:    containers,
		processes:     processes,
		initialSetuid: initialSetuid,
	}
}

// OpenPinned opens the three maps from their pinned paths under pinDir
// (conventionally /sys/fs/bpf/lockc). The handles are read-write: lockcd's
// control-plane maintainer and lockctl's apply-policy both write through
// them.
func OpenPinned(pinDir string) (*BPFTables, error) {
	containers, err := ebpf.LoadPinnedMap(pinDir+"/"+MapContainers, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", MapContainers, err)
	}
	processes, err := ebpf.LoadPinnedMap(pinDir+"/"+MapProcesses, nil)
	if err != nil {
		containers.Close()
		return nil, fmt.Errorf("open %s: %w", MapProcesses, err)
	}
	initialSetuid, err := ebpf.LoadPinnedMap(pinDir+"/"+MapContainerInitialSetuid, nil)
	if err != nil {
		containers.Close()
		processes.Close()
		return nil, fmt.Errorf("open %s: %w", MapContainerInitialSetuid, err)
	}
	return NewBPFTables(containers, processes, initialSetuid), nil
}

func (t *BPFTables) AddContainer(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error {
	v := bpftypes.Container{PolicyLevel: level}
	if err := t.containers.Put(id, v); err != nil {
		return fmt.Errorf("add container: %w", err)
	}
	// A fresh registration always starts with no setuid observed yet.
	var unset uint8
	if err := t.initialSetuid.Put(id, unset); err != nil {
		return fmt.Errorf("reset initial setuid flag: %w", err)
	}
	return nil
}

func (t *BPFTables) DeleteContainer(id bpftypes.ContainerID) error {
	if err := t.containers.Delete(id); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		// A missing map entry on delete is not itself an error the
		// caller should treat as a failed deletion.
		return fmt.Errorf("delete container: %w", err)
	}
	_ = t.initialSetuid.Delete(id)
	return t.reapProcesses(id)
}

// reapProcesses deletes every processes entry whose ContainerID is id, so
// a deleted container's still-live pids resolve to NotFound (allow)
// rather than ErrInconsistent (deny) before their exit hook fires.
func (t *BPFTables) reapProcesses(id bpftypes.ContainerID) error {
	var stale []uint32
	var key uint32
	var val bpftypes.Process
	it := t.processes.Iterate()
	for it.Next(&key, &val) {
		if val.ContainerID == id {
			stale = append(stale, key)
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("scan processes for reap: %w", err)
	}
	for _, pid := range stale {
		if err := t.processes.Delete(pid); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			return fmt.Errorf("reap process %d: %w", pid, err)
		}
	}
	return nil
}

func (t *BPFTables) SetPolicyLevel(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error {
	var c bpftypes.Container
	if err := t.containers.Lookup(id, &c); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return ErrNotFound
		}
		return err
	}
	c.PolicyLevel = level
	return t.containers.Put(id, c)
}

func (t *BPFTables) GetContainer(id bpftypes.ContainerID) (bpftypes.Container, error) {
	var c bpftypes.Container
	if err := t.containers.Lookup(id, &c); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return bpftypes.Container{}, ErrNotFound
		}
		return bpftypes.Container{}, err
	}
	return c, nil
}

func (t *BPFTables) ListContainers() (map[bpftypes.ContainerID]bpftypes.Container, error) {
	out := make(map[bpftypes.ContainerID]bpftypes.Container)
	var key bpftypes.ContainerID
	var val bpftypes.Container
	it := t.containers.Iterate()
	for it.Next(&key, &val) {
		out[key] = val
	}
	return out, it.Err()
}

func (t *BPFTables) AddProcess(pid int32, id bpftypes.ContainerID) error {
	key := uint32(pid)
	if err := t.processes.Put(key, bpftypes.Process{ContainerID: id}); err != nil {
		return fmt.Errorf("add process: %w", err)
	}
	return nil
}

func (t *BPFTables) DeleteProcess(pid int32) error {
	key := uint32(pid)
	if err := t.processes.Delete(key); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		return fmt.Errorf("delete process: %w", err)
	}
	return nil
}

func (t *BPFTables) GetProcess(pid int32) (bpftypes.Process, error) {
	var p bpftypes.Process
	key := uint32(pid)
	if err := t.processes.Lookup(key, &p); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return bpftypes.Process{}, ErrNotFound
		}
		return bpftypes.Process{}, err
	}
	return p, nil
}

func (t *BPFTables) ListProcesses() (map[int32]bpftypes.Process, error) {
	out := make(map[int32]bpftypes.Process)
	var key uint32
	var val bpftypes.Process
	it := t.processes.Iterate()
	for it.Next(&key, &val) {
		out[int32(key)] = val
	}
	return out, it.Err()
}

func (t *BPFTables) ResolvePolicy(pid int32) (bpftypes.PolicyLevel, bpftypes.ContainerID, error) {
	return resolvePolicyGeneric(t, pid)
}

func (t *BPFTables) CheckInitialSetuid(id bpftypes.ContainerID) (bool, error) {
	var seen uint8
	if err := t.initialSetuid.Lookup(id, &seen); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return false, ErrNotFound
		}
		return false, err
	}
	if seen == 0 {
		if err := t.initialSetuid.Put(id, uint8(1)); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (t *BPFTables) Close() error {
	t.containers.Close()
	t.processes.Close()
	t.initialSetuid.Close()
	return nil
}
