package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessDescriptor is a snapshot of one running process at enumeration time.
type ProcessDescriptor struct {
	PID       ProcessID // Process ID
	ParentPID ProcessID // Parent Process ID
	Threads   int       // Number of threads
	Priority  int       // Base scheduling priority (priority class on Windows, nice on Linux)
	ExeName   string    // Executable file name
}

func (pd ProcessDescriptor) String() string {
	return fmt.Sprintf("%s (pid %d, ppid %d, threads %d, prio %d)", pd.ExeName, pd.PID, pd.ParentPID, pd.Threads, pd.Priority)
}

// ModuleDescriptor is a snapshot of one module loaded in a process. Base is
// only meaningful while the module stays loaded.
type ModuleDescriptor struct {
	Base ProcessMemoryAddress // Base address inside the owning process
	Size ProcessMemorySize    // Image size in bytes
	Name string               // Module file name
	Path string               // Full path of the module file
	PID  ProcessID            // Owning process
}

// End returns the first address past the module image.
func (md ModuleDescriptor) End() ProcessMemoryAddress {
	return md.Base + ProcessMemoryAddress(md.Size)
}

// Contains reports whether addr falls inside the module image.
func (md ModuleDescriptor) Contains(addr ProcessMemoryAddress) bool {
	return addr >= md.Base && addr < md.End()
}

func (md ModuleDescriptor) String() string {
	return fmt.Sprintf("%s %s+%s", md.Name, md.Base.ToString(), md.Size.ToString())
}
