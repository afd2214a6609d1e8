package tables

import (
	"sync"

	"github.com/lockc-project/lockc/pkg/bpftypes"
)

// MemTables is an in-memory Tables implementation backed by plain maps
// guarded by a mutex. It is used by unit tests and by any caller that
// wants to exercise the policy/lineage reference logic without a kernel.
type MemTables struct {
	mu         sync.Mutex
	containers map[bpftypes.ContainerID]bpftypes.Container
	processes  map[int32]bpftypes.Process
}

// NewMemTables returns an empty MemTables.
func NewMemTables() *MemTables {
	return &MemTables{
		containers: make(map[bpftypes.ContainerID]bpftypes.Container),
		processes:  make(map[int32]bpftypes.Process),
	}
}

func (m *MemTables) AddContainer(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[id] = bpftypes.Container{PolicyLevel: level}
	return nil
}

func (m *MemTables) DeleteContainer(id bpftypes.ContainerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, id)
	for pid, p := range m.processes {
		if p.ContainerID == id {
			delete(m.processes, pid)
		}
	}
	return nil
}

func (m *MemTables) SetPolicyLevel(id bpftypes.ContainerID, level bpftypes.PolicyLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return ErrNotFound
	}
	c.PolicyLevel = level
	m.containers[id] = c
	return nil
}

func (m *MemTables) GetContainer(id bpftypes.ContainerID) (bpftypes.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return bpftypes.Container{}, ErrNotFound
	}
	return c, nil
}

func (m *MemTables) ListContainers() (map[bpftypes.ContainerID]bpftypes.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[bpftypes.ContainerID]bpftypes.Container, len(m.containers))
	for k, v := range m.containers {
		out[k] = v
	}
	return out, nil
}

func (m *MemTables) AddProcess(pid int32, id bpftypes.ContainerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Idempotent: re-adding the same (pid, id) pair is a benign no-op.
	m.processes[pid] = bpftypes.Process{ContainerID: id}
	return nil
}

func (m *MemTables) DeleteProcess(pid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processes, pid)
	return nil
}

func (m *MemTables) GetProcess(pid int32) (bpftypes.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[pid]
	if !ok {
		return bpftypes.Process{}, ErrNotFound
	}
	return p, nil
}

func (m *MemTables) ListProcesses() (map[int32]bpftypes.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int32]bpftypes.Process, len(m.processes))
	for k, v := range m.processes {
		out[k] = v
	}
	return out, nil
}

func (m *MemTables) ResolvePolicy(pid int32) (bpftypes.PolicyLevel, bpftypes.ContainerID, error) {
	return resolvePolicyGeneric(m, pid)
}

func (m *MemTables) CheckInitialSetuid(id bpftypes.ContainerID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return false, ErrNotFound
	}
	seen := c.InitialSetuidSeen
	c.InitialSetuidSeen = true
	m.containers[id] = c
	return seen, nil
}

func (m *MemTables) Close() error {
	return nil
}
