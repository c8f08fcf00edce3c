//go:build linux

package process_linux

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"procmem/process"
)

// process_vm_readv copies from remoteAddr in pid into buf with a single
// process_vm_readv call. The kernel stops at the first unmapped page, so n
// may be short; an unmapped first page is EFAULT.
func process_vm_readv(pid process.ProcessID, buf []byte, remoteAddr process.ProcessMemoryAddress) (int, unix.Errno) {
	if len(buf) == 0 {
		return 0, 0
	}

	localIov := unix.Iovec{
		Base: &buf[0],
		Len:  uint64(len(buf)),
	}

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  len(buf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags (reserved for future use)
	)

	if errno != 0 {
		return 0, errno
	}
	return int(n), 0
}
