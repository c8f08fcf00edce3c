package process

import (
	"procmem/process/memory_map"
)

// MemoryAccess copies memory out of a target process.
type MemoryAccess interface {
	// ReadMemory copies up to len(buf) bytes starting at addr into buf and
	// returns the number of bytes copied. Unmapped memory shows up as a short
	// count with a nil error; errors are reserved for access and process
	// failures (ErrAccessDenied, ErrNotFound, ErrPlatform).
	ReadMemory(addr ProcessMemoryAddress, buf []byte) (int, error)
}

// Handle is an open, OS-issued capability for one target process.
type Handle interface {
	MemoryAccess
	memory_map.Querier

	// PID returns the process the handle was opened on
	PID() ProcessID

	// Close releases the OS resource. Closing twice is a no-op.
	Close() error
}

// Provider is the OS layer: process and module enumeration and opening handles.
type Provider interface {
	// ListProcesses returns every visible process in OS enumeration order
	ListProcesses() ([]ProcessDescriptor, error)

	// DescribeProcess returns the descriptor of a single process, ErrNotFound if it does not exist
	DescribeProcess(pid ProcessID) (ProcessDescriptor, error)

	// Open opens a handle with query and read rights
	Open(pid ProcessID) (Handle, error)

	// ListModules returns the modules loaded in pid in OS enumeration order
	ListModules(pid ProcessID) ([]ModuleDescriptor, error)
}
