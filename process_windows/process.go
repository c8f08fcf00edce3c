//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"

	"procmem/process"
	"procmem/process/memory_map"
)

const (
	// access requested by Open: enough to query regions and read, nothing more
	openAccess = windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ

	stillActive = 259
	pageSize    = 0x1000
)

// windowsHandle wraps a process handle from OpenProcess.
type windowsHandle struct {
	pid process.ProcessID
	log *logger.Logger

	mu     sync.Mutex
	handle windows.Handle
}

var _ process.Handle = (*windowsHandle)(nil)

func open(pid process.ProcessID) (*windowsHandle, error) {
	handle, err := windows.OpenProcess(openAccess, false, uint32(pid))
	if err != nil {
		return nil, classify(pid, "OpenProcess", err)
	}

	h := &windowsHandle{
		pid:    pid,
		handle: handle,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	h.log.Infoln("Process opened")
	return h, nil
}

func (h *windowsHandle) PID() process.ProcessID {
	return h.pid
}

func (h *windowsHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(h.handle)
	h.handle = 0
	if err != nil {
		return fmt.Errorf("%w: CloseHandle: %w", process.ErrPlatform, err)
	}

	h.log.Infoln("Process closed")
	return nil
}

func (h *windowsHandle) get() (windows.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle == 0 {
		return 0, process.ErrInvalidHandle
	}
	return h.handle, nil
}

// QueryRegion wraps VirtualQueryEx. ERROR_INVALID_PARAMETER marks the end of
// the address space.
func (h *windowsHandle) QueryRegion(addr uint64) (memory_map.Region, bool, error) {
	handle, err := h.get()
	if err != nil {
		return memory_map.Region{}, false, err
	}

	var mbi windows.MemoryBasicInformation
	err = windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return memory_map.Region{}, false, nil
		}
		return memory_map.Region{}, false, classify(h.pid, "VirtualQueryEx", err)
	}

	return memory_map.FromBasicInformation(mbi), true, nil
}

// ReadMemory wraps ReadProcessMemory. When the range crosses into an
// unreadable page the call fails with ERROR_PARTIAL_COPY; the range is then
// retried page by page so the readable prefix is still returned.
func (h *windowsHandle) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	handle, err := h.get()
	if err != nil {
		return 0, err
	}

	n, err := h.read(handle, addr, buf)
	if err == nil {
		return n, nil
	}
	if !isUnreadable(err) {
		return 0, err
	}

	copied := 0
	for copied < len(buf) {
		cur := uint64(addr) + uint64(copied)
		chunk := int((cur | (pageSize - 1)) + 1 - cur)
		if chunk > len(buf)-copied {
			chunk = len(buf) - copied
		}

		n, err := h.read(handle, process.ProcessMemoryAddress(cur), buf[copied:copied+chunk])
		copied += n
		if err != nil {
			if isUnreadable(err) {
				break
			}
			return copied, err
		}
		if n < chunk {
			break
		}
	}

	return copied, nil
}

func (h *windowsHandle) read(handle windows.Handle, addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	var n uintptr
	err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err == nil {
		return int(n), nil
	}
	if isUnreadable(err) {
		if h.exited(handle) {
			return int(n), fmt.Errorf("%w: process %d exited", process.ErrNotFound, h.pid)
		}
		return int(n), err
	}
	return int(n), classify(h.pid, "ReadProcessMemory", err)
}

func (h *windowsHandle) exited(handle windows.Handle) bool {
	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code != stillActive
}

func isUnreadable(err error) bool {
	return errors.Is(err, windows.ERROR_PARTIAL_COPY) || errors.Is(err, windows.ERROR_NOACCESS)
}

// classify maps a Win32 error to the process error kinds.
func classify(pid process.ProcessID, op string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %s pid %d: %w", process.ErrAccessDenied, op, pid, err)
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return fmt.Errorf("%w: %s pid %d: %w", process.ErrNotFound, op, pid, err)
	}
	return fmt.Errorf("%w: %s pid %d: %w", process.ErrPlatform, op, pid, err)
}
