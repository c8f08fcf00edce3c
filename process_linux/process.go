//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"

	"procmem/process"
	"procmem/process/memory_map"
)

// linuxHandle is an open /proc/<pid>/mem. The file is the capability: opening
// it performs the same ptrace access check as process_vm_readv.
type linuxHandle struct {
	pid process.ProcessID
	log *logger.Logger

	mu     sync.Mutex
	mem    *os.File
	mm     []memory_map.Region
	closed bool
}

var (
	_ process.Handle       = (*linuxHandle)(nil)
	_ memory_map.Refresher = (*linuxHandle)(nil)
)

func open(pid process.ProcessID) (*linuxHandle, error) {
	mem, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return nil, classify(pid, "open", err)
	}

	h := &linuxHandle{
		pid: pid,
		mem: mem,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	if err := h.Refresh(); err != nil {
		mem.Close()
		return nil, err
	}

	h.log.Infoln("Process opened")
	return h, nil
}

func (h *linuxHandle) PID() process.ProcessID {
	return h.pid
}

func (h *linuxHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.mm = nil

	h.log.Infoln("Process closed")
	return h.mem.Close()
}

// Refresh re-reads /proc/<pid>/maps.
func (h *linuxHandle) Refresh() error {
	mm, err := readMaps(h.pid)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return process.ErrInvalidHandle
	}
	h.mm = mm
	return nil
}

// QueryRegion answers from the cached maps, synthesizing free regions for gaps.
func (h *linuxHandle) QueryRegion(addr uint64) (memory_map.Region, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return memory_map.Region{}, false, process.ErrInvalidHandle
	}

	region, ok := memory_map.Lookup(h.mm, addr)
	return region, ok, nil
}

// ReadMemory reads with process_vm_readv, falling back to pread on
// /proc/<pid>/mem when the syscall is unavailable or refused.
func (h *linuxHandle) ReadMemory(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return 0, process.ErrInvalidHandle
	}

	n, errno := process_vm_readv(h.pid, buf, addr)
	switch errno {
	case 0:
		return n, nil
	case unix.EFAULT, unix.EIO:
		return 0, nil
	case unix.ESRCH:
		return 0, fmt.Errorf("%w: process %d exited", process.ErrNotFound, h.pid)
	case unix.EPERM, unix.ENOSYS:
		return h.preadMem(addr, buf)
	}

	return 0, fmt.Errorf("%w: process_vm_readv at %s: %w", process.ErrPlatform, addr.ToString(), errno)
}

func (h *linuxHandle) preadMem(addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	if uint64(addr) > math.MaxInt64 {
		return 0, nil
	}

	n, err := h.mem.ReadAt(buf, int64(addr))
	if err == nil {
		return n, nil
	}

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, unix.EIO), errors.Is(err, unix.EFAULT), errors.Is(err, unix.EINVAL):
		return n, nil
	case errors.Is(err, unix.ESRCH):
		return n, fmt.Errorf("%w: process %d exited", process.ErrNotFound, h.pid)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return n, fmt.Errorf("%w: read pid %d: %w", process.ErrAccessDenied, h.pid, err)
	case errors.Is(err, os.ErrClosed):
		return n, process.ErrInvalidHandle
	}

	if n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("%w: read /proc/%d/mem at %s: %w", process.ErrPlatform, h.pid, addr.ToString(), err)
}
