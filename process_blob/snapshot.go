// Package process_blob provides an in-memory process.Provider built from
// copied memory, for offline analysis of saved dumps and for tests.
package process_blob

import (
	"fmt"
	"sort"
	"sync"

	"procmem/process"
	"procmem/process/memory_map"
)

// ProcessMemory is the captured address space of one process.
type ProcessMemory struct {
	Regions []memory_map.Region
	Blobs   []*ProcessBlob
}

// Snapshot implements process.Provider over captured processes.
type Snapshot struct {
	mu        sync.Mutex
	processes []process.ProcessDescriptor
	modules   map[process.ProcessID][]process.ModuleDescriptor
	memory    map[process.ProcessID]*ProcessMemory
	denied    map[process.ProcessID]string
}

var _ process.Provider = (*Snapshot)(nil)

// NewSnapshot creates an empty Snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		modules: make(map[process.ProcessID][]process.ModuleDescriptor),
		memory:  make(map[process.ProcessID]*ProcessMemory),
		denied:  make(map[process.ProcessID]string),
	}
}

// AddProcess registers a process. Processes are listed in insertion order.
func (s *Snapshot) AddProcess(desc process.ProcessDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processes = append(s.processes, desc)
	if _, ok := s.memory[desc.PID]; !ok {
		s.memory[desc.PID] = &ProcessMemory{}
	}
}

// RemoveProcess forgets a process, as if it had exited.
func (s *Snapshot) RemoveProcess(pid process.ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.processes {
		if p.PID == pid {
			s.processes = append(s.processes[:i], s.processes[i+1:]...)
			break
		}
	}
	delete(s.modules, pid)
	delete(s.memory, pid)
}

// Deny makes Open fail for pid with ErrAccessDenied and the given reason.
func (s *Snapshot) Deny(pid process.ProcessID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[pid] = reason
}

// AddRegion maps region into pid. When data is non-nil it becomes the region's
// readable content; it may be shorter than the region.
func (s *Snapshot) AddRegion(pid process.ProcessID, region memory_map.Region, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.memory[pid]
	if !ok {
		mem = &ProcessMemory{}
		s.memory[pid] = mem
	}

	mem.Regions = append(mem.Regions, region)
	memory_map.Sort(mem.Regions)

	if data != nil {
		mem.Blobs = append(mem.Blobs, NewProcessBlob(process.ProcessMemoryAddress(region.Base), data))
		sort.Slice(mem.Blobs, func(i, j int) bool {
			return mem.Blobs[i].Base() < mem.Blobs[j].Base()
		})
	}
}

// AddModule maps image at base as a readable, executable module of pid.
func (s *Snapshot) AddModule(pid process.ProcessID, name, path string, base process.ProcessMemoryAddress, image []byte) process.ModuleDescriptor {
	mod := process.ModuleDescriptor{
		Base: base,
		Size: process.ProcessMemorySize(len(image)),
		Name: name,
		Path: path,
		PID:  pid,
	}

	s.AddModuleDescriptor(mod)
	s.AddRegion(pid, memory_map.Region{
		Base:    uint64(base),
		Size:    uint64(len(image)),
		State:   memory_map.MEM_COMMIT,
		Protect: memory_map.PAGE_EXECUTE_READ,
		Type:    memory_map.MEM_IMAGE,
		Perms:   "r-xp",
		Path:    path,
	}, image)

	return mod
}

// AddModuleDescriptor registers a module without mapping any memory.
func (s *Snapshot) AddModuleDescriptor(mod process.ModuleDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[mod.PID] = append(s.modules[mod.PID], mod)
}

func (s *Snapshot) ListProcesses() ([]process.ProcessDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]process.ProcessDescriptor, len(s.processes))
	copy(result, s.processes)
	return result, nil
}

func (s *Snapshot) DescribeProcess(pid process.ProcessID) (process.ProcessDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.processes {
		if p.PID == pid {
			return p, nil
		}
	}
	return process.ProcessDescriptor{}, fmt.Errorf("%w: process with PID %d does not exist", process.ErrNotFound, pid)
}

func (s *Snapshot) Open(pid process.ProcessID) (process.Handle, error) {
	if _, err := s.DescribeProcess(pid); err != nil {
		return nil, err
	}

	s.mu.Lock()
	reason, denied := s.denied[pid]
	s.mu.Unlock()

	if denied {
		return nil, fmt.Errorf("%w: open pid %d: %s", process.ErrAccessDenied, pid, reason)
	}

	return &snapshotHandle{snapshot: s, pid: pid}, nil
}

func (s *Snapshot) ListModules(pid process.ProcessID) ([]process.ModuleDescriptor, error) {
	if _, err := s.DescribeProcess(pid); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]process.ModuleDescriptor, len(s.modules[pid]))
	copy(result, s.modules[pid])
	return result, nil
}

func (s *Snapshot) processMemory(pid process.ProcessID) (*ProcessMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.memory[pid]
	return mem, ok
}

type snapshotHandle struct {
	snapshot *Snapshot
	pid      process.ProcessID
	mu       sync.Mutex
	closed   bool
}

func (h *snapshotHandle) PID() process.ProcessID {
	return h.pid
}

func (h *snapshotHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *snapshotHandle) memory() (*ProcessMemory, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return nil, process.ErrInvalidHandle
	}

	mem, ok := h.snapshot.processMemory(h.pid)
	if !ok {
		return nil, fmt.Errorf("%w: process %d exited", process.ErrNotFound, h.pid)
	}
	return mem, nil
}

// ReadMemory copies the contiguous readable prefix starting at addr, like a
// ReadProcessMemory call that stops at the first unreadable page.
func (h *snapshotHandle) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	mem, err := h.memory()
	if err != nil {
		return 0, err
	}

	n := 0
	for n < len(buf) {
		cur := addr + process.ProcessMemoryAddress(n)
		i := sort.Search(len(mem.Blobs), func(i int) bool {
			return mem.Blobs[i].End() > cur
		})
		if i == len(mem.Blobs) || !mem.Blobs[i].Contains(cur) {
			break
		}
		n += mem.Blobs[i].ReadAt(cur, buf[n:])
	}

	return n, nil
}

func (h *snapshotHandle) QueryRegion(addr uint64) (memory_map.Region, bool, error) {
	mem, err := h.memory()
	if err != nil {
		return memory_map.Region{}, false, err
	}

	region, ok := memory_map.Lookup(mem.Regions, addr)
	return region, ok, nil
}
