// Package session keeps open process handles behind plain integer tokens so
// that callers which can only pass values (script bindings, RPC) can use them.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/module"
	"procmem/pattern"
	"procmem/process"
	"procmem/process/memory_map"
	"procmem/process_blob"
	"procmem/reader"
)

// Token identifies an open handle. Tokens are never reused within a Manager.
type Token uint32

// Opened describes a freshly opened process.
type Opened struct {
	Token      Token
	Process    process.ProcessDescriptor
	ModuleBase process.ProcessMemoryAddress // base of the main module, zero if it could not be resolved
}

type entry struct {
	handle  process.Handle
	process process.ProcessDescriptor
}

// Manager owns the token registry and the components that work on it.
type Manager struct {
	processes *process.Resolver
	modules   *module.Resolver
	reader    *reader.Reader
	scanner   *pattern.Scanner
	log       *logger.Logger

	mu      sync.Mutex
	next    Token
	handles map[Token]*entry
}

// Option is a function that configures a Manager
type Option func(*Manager)

func WithReader(r *reader.Reader) Option {
	return func(m *Manager) {
		m.reader = r
	}
}

func WithScanner(s *pattern.Scanner) Option {
	return func(m *Manager) {
		m.scanner = s
	}
}

// NewManager creates a Manager on top of provider.
func NewManager(provider process.Provider, options ...Option) *Manager {
	m := &Manager{
		processes: process.NewResolver(provider),
		modules:   module.NewResolver(provider),
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "session")),
		handles:   make(map[Token]*entry),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.reader == nil {
		m.reader = reader.New()
	}
	if m.scanner == nil {
		m.scanner = pattern.NewScanner(m.reader)
	}

	return m
}

// OpenProcess opens by pid when nameOrID is a decimal number, otherwise by
// executable name.
func (m *Manager) OpenProcess(nameOrID string) (Opened, error) {
	if pid, err := strconv.Atoi(nameOrID); err == nil {
		return m.OpenByID(process.ProcessID(pid))
	}
	return m.OpenByName(nameOrID)
}

func (m *Manager) OpenByName(name string) (Opened, error) {
	h, desc, err := m.processes.OpenByName(name)
	if err != nil {
		return Opened{}, err
	}
	return m.register(h, desc), nil
}

func (m *Manager) OpenByID(pid process.ProcessID) (Opened, error) {
	h, desc, err := m.processes.OpenByID(pid)
	if err != nil {
		return Opened{}, err
	}
	return m.register(h, desc), nil
}

func (m *Manager) register(h process.Handle, desc process.ProcessDescriptor) Opened {
	m.mu.Lock()
	m.next++
	token := m.next
	m.handles[token] = &entry{handle: h, process: desc}
	m.mu.Unlock()

	base, err := m.modules.GetBaseAddress(desc.ExeName, desc.PID)
	if err != nil {
		m.log.Debugln("No main module base for", desc.ExeName, err)
	}

	return Opened{Token: token, Process: desc, ModuleBase: base}
}

// CloseProcess closes the handle behind token. Unknown or already closed
// tokens are ignored.
func (m *Manager) CloseProcess(token Token) error {
	m.mu.Lock()
	e, ok := m.handles[token]
	delete(m.handles, token)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.processes.Close(e.handle)
}

// CloseAll closes every open handle.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[Token]*entry)
	m.mu.Unlock()

	for token, e := range handles {
		if err := m.processes.Close(e.handle); err != nil {
			m.log.Warn("Close", token, "failed:", err)
		}
	}
}

// Open reports how many handles are open
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *Manager) lookup(token Token) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.handles[token]
	if !ok {
		return nil, fmt.Errorf("%w: %d", process.ErrInvalidHandle, token)
	}
	return e, nil
}

func (m *Manager) GetProcesses() ([]process.ProcessDescriptor, error) {
	return m.processes.ListAll()
}

func (m *Manager) GetModules(pid process.ProcessID) ([]process.ModuleDescriptor, error) {
	return m.modules.ListModules(pid)
}

func (m *Manager) FindModule(name string, pid process.ProcessID) (process.ModuleDescriptor, error) {
	return m.modules.FindModule(pid, name)
}

// GetRegions enumerates the whole address space of the process behind token.
func (m *Manager) GetRegions(token Token) ([]memory_map.Region, error) {
	e, err := m.lookup(token)
	if err != nil {
		return nil, err
	}

	regions, err := memory_map.Enumerate(e.handle)
	if err != nil {
		if process.KindOf(err) == process.KindPlatform && !errors.Is(err, process.ErrPlatform) {
			err = fmt.Errorf("%w: %w", process.ErrPlatform, err)
		}
		return nil, err
	}
	return regions, nil
}

// ReadMemory reads one value of dataType, see reader.ReadTyped for the names.
func (m *Manager) ReadMemory(token Token, addr process.ProcessMemoryAddress, dataType reader.DataType) (any, error) {
	e, err := m.lookup(token)
	if err != nil {
		return nil, err
	}
	return m.reader.ReadTyped(e.handle, addr, dataType)
}

func (m *Manager) ReadBuffer(token Token, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	e, err := m.lookup(token)
	if err != nil {
		return nil, err
	}
	return m.reader.ReadBuffer(e.handle, addr, size)
}

// ResolvePath follows a pointer chain from base, see reader.ReadPath.
func (m *Manager) ResolvePath(token Token, base process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	e, err := m.lookup(token)
	if err != nil {
		return 0, err
	}
	return m.reader.ReadPath(e.handle, base, offsets...)
}

// Capture copies the readable memory of the process behind token into a
// snapshot that can be saved and scanned offline.
func (m *Manager) Capture(token Token, maxRegionSize uint64) (*process_blob.Snapshot, error) {
	e, err := m.lookup(token)
	if err != nil {
		return nil, err
	}

	modules, err := m.modules.ListModules(e.process.PID)
	if err != nil && process.KindOf(err) != process.KindNotFound {
		return nil, err
	}

	snapshot, err := process_blob.Capture(e.handle, e.process, modules, maxRegionSize)
	if err != nil {
		return nil, err
	}

	m.log.Infoln("Captured", e.process.ExeName, "pid", e.process.PID)
	return snapshot, nil
}

// FindPattern scans moduleName of the process behind token. The signature is
// parsed before anything else; a module that is not loaded is a
// ModuleNotFound result.
func (m *Manager) FindPattern(token Token, moduleName, signature string, mode pattern.Mode, patternOffset, addressOffset uint64) (pattern.Result, error) {
	e, err := m.lookup(token)
	if err != nil {
		return pattern.Result{}, err
	}

	p, err := pattern.Parse(signature)
	if err != nil {
		return pattern.Result{}, err
	}

	modules, err := m.modules.ListModules(e.process.PID)
	if err != nil {
		return pattern.Result{}, err
	}

	return m.scanner.FindCompiledInModules(e.handle, modules, moduleName, p, mode, patternOffset, addressOffset)
}
