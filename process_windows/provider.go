//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"

	"procmem/process"
)

// Provider implements process.Provider with the Toolhelp32 API.
type Provider struct {
	log *logger.Logger
}

var _ process.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-windows")),
	}
}

func (p *Provider) ListProcesses() ([]process.ProcessDescriptor, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return nil, nil
		}
		return nil, fmt.Errorf("Process32First: %w", err)
	}

	var result []process.ProcessDescriptor
	for {
		result = append(result, process.ProcessDescriptor{
			PID:       process.ProcessID(entry.ProcessID),
			ParentPID: process.ProcessID(entry.ParentProcessID),
			Threads:   int(entry.Threads),
			Priority:  int(entry.PriClassBase),
			ExeName:   windows.UTF16ToString(entry.ExeFile[:]),
		})

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("Process32Next: %w", err)
		}
	}

	return result, nil
}

func (p *Provider) DescribeProcess(pid process.ProcessID) (process.ProcessDescriptor, error) {
	processes, err := p.ListProcesses()
	if err != nil {
		return process.ProcessDescriptor{}, fmt.Errorf("%w: %w", process.ErrPlatform, err)
	}

	for _, desc := range processes {
		if desc.PID == pid {
			return desc, nil
		}
	}
	return process.ProcessDescriptor{}, fmt.Errorf("%w: process with PID %d does not exist", process.ErrNotFound, pid)
}

func (p *Provider) Open(pid process.ProcessID) (process.Handle, error) {
	return open(pid)
}

// ListModules snapshots the 32 and 64-bit modules of pid. A process that is
// still initialising fails with ERROR_PARTIAL_COPY and is reported as ErrNotFound.
func (p *Provider) ListModules(pid process.ProcessID) ([]process.ModuleDescriptor, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_PARTIAL_COPY) || errors.Is(err, windows.ERROR_BAD_LENGTH) {
			return nil, fmt.Errorf("%w: modules of pid %d not available yet: %w", process.ErrNotFound, pid, err)
		}
		return nil, classify(pid, "CreateToolhelp32Snapshot", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Module32First(snapshot, &entry); err != nil {
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return nil, nil
		}
		return nil, classify(pid, "Module32First", err)
	}

	var result []process.ModuleDescriptor
	for {
		result = append(result, process.ModuleDescriptor{
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
			Name: windows.UTF16ToString(entry.Module[:]),
			Path: windows.UTF16ToString(entry.ExePath[:]),
			PID:  pid,
		})

		if err := windows.Module32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, classify(pid, "Module32Next", err)
		}
	}

	p.log.Debugln("Found", len(result), "modules in pid", pid)
	return result, nil
}
