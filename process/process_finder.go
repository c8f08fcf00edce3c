package process

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Resolver opens processes by name or id on top of a Provider.
type Resolver struct {
	provider Provider
	log      *logger.Logger
}

// NewResolver creates a Resolver backed by provider
func NewResolver(provider Provider) *Resolver {
	return &Resolver{
		provider: provider,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-resolver")),
	}
}

// ListAll returns every process visible to the caller in OS enumeration order.
func (r *Resolver) ListAll() ([]ProcessDescriptor, error) {
	processes, err := r.provider.ListProcesses()
	if err != nil {
		return nil, fmt.Errorf("%w: list processes: %w", ErrPlatform, err)
	}
	return processes, nil
}

// FindByName returns the first process, in enumeration order, whose executable
// name equals name exactly.
func (r *Resolver) FindByName(name string) (ProcessDescriptor, error) {
	processes, err := r.ListAll()
	if err != nil {
		return ProcessDescriptor{}, err
	}

	for _, p := range processes {
		if p.ExeName == name {
			return p, nil
		}
	}

	return ProcessDescriptor{}, fmt.Errorf("%w: no process named '%s'", ErrNotFound, name)
}

// OpenByName opens the first process whose executable name equals name.
// Several processes may share a name; the first in enumeration order wins.
func (r *Resolver) OpenByName(name string) (Handle, ProcessDescriptor, error) {
	desc, err := r.FindByName(name)
	if err != nil {
		return nil, ProcessDescriptor{}, err
	}

	handle, err := r.open(desc)
	if err != nil {
		return nil, ProcessDescriptor{}, err
	}
	return handle, desc, nil
}

// OpenByID opens the process with the given pid.
func (r *Resolver) OpenByID(pid ProcessID) (Handle, ProcessDescriptor, error) {
	desc, err := r.provider.DescribeProcess(pid)
	if err != nil {
		return nil, ProcessDescriptor{}, err
	}

	handle, err := r.open(desc)
	if err != nil {
		return nil, ProcessDescriptor{}, err
	}
	return handle, desc, nil
}

func (r *Resolver) open(desc ProcessDescriptor) (Handle, error) {
	handle, err := r.provider.Open(desc.PID)
	if err != nil {
		r.log.Debugln("Open failed for", desc.ExeName, desc.PID, err)
		return nil, err
	}
	r.log.Infoln("Opened process", desc.ExeName, "pid", desc.PID)
	return handle, nil
}

// Close releases handle. A nil handle is ignored.
func (r *Resolver) Close(handle Handle) error {
	if handle == nil {
		return nil
	}
	return handle.Close()
}
