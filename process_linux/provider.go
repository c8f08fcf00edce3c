//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	gopsprocess "github.com/shirou/gopsutil/v4/process"

	"procmem/process"
	"procmem/process/memory_map"
)

// Provider implements process.Provider on Linux using /proc and process_vm_readv.
type Provider struct {
	log *logger.Logger
}

var _ process.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-linux")),
	}
}

// ListProcesses returns all processes in /proc order. Processes that exit
// while being described are skipped.
func (p *Provider) ListProcesses() ([]process.ProcessDescriptor, error) {
	procs, err := gopsprocess.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	result := make([]process.ProcessDescriptor, 0, len(procs))
	for _, proc := range procs {
		desc, err := describe(proc)
		if err != nil {
			p.log.Debugln("Skipping pid", proc.Pid, err)
			continue
		}
		result = append(result, desc)
	}

	return result, nil
}

func (p *Provider) DescribeProcess(pid process.ProcessID) (process.ProcessDescriptor, error) {
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, gopsprocess.ErrorProcessNotRunning) {
			return process.ProcessDescriptor{}, fmt.Errorf("%w: process with PID %d does not exist", process.ErrNotFound, pid)
		}
		return process.ProcessDescriptor{}, fmt.Errorf("%w: pid %d: %w", process.ErrPlatform, pid, err)
	}

	desc, err := describe(proc)
	if err != nil {
		return process.ProcessDescriptor{}, fmt.Errorf("%w: process with PID %d: %w", process.ErrNotFound, pid, err)
	}
	return desc, nil
}

// describe fills a descriptor from /proc. Only the name is required; the
// other fields are left zero when unreadable.
func describe(proc *gopsprocess.Process) (process.ProcessDescriptor, error) {
	name, err := proc.Name()
	if err != nil {
		return process.ProcessDescriptor{}, err
	}

	desc := process.ProcessDescriptor{
		PID:     process.ProcessID(proc.Pid),
		ExeName: name,
	}

	if ppid, err := proc.Ppid(); err == nil {
		desc.ParentPID = process.ProcessID(ppid)
	}
	if threads, err := proc.NumThreads(); err == nil {
		desc.Threads = int(threads)
	}
	if nice, err := proc.Nice(); err == nil {
		desc.Priority = int(nice)
	}

	return desc, nil
}

func (p *Provider) Open(pid process.ProcessID) (process.Handle, error) {
	return open(pid)
}

// ListModules returns the file-backed mappings of pid grouped by path.
func (p *Provider) ListModules(pid process.ProcessID) ([]process.ModuleDescriptor, error) {
	regions, err := readMaps(pid)
	if err != nil {
		return nil, err
	}
	return ModulesFromMaps(pid, regions), nil
}

func readMaps(pid process.ProcessID) ([]memory_map.Region, error) {
	regions, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		return nil, classify(pid, "read maps", err)
	}
	return regions, nil
}

// classify maps an OS error to the process error kinds.
func classify(pid process.ProcessID, op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s pid %d: %w", process.ErrNotFound, op, pid, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s pid %d: %w", process.ErrAccessDenied, op, pid, err)
	}
	return fmt.Errorf("%w: %s pid %d: %w", process.ErrPlatform, op, pid, err)
}
