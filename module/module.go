// Package module resolves the modules (executable images and shared
// libraries) loaded in a process.
package module

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/process"
)

// Resolver lists and looks up modules through a process.Provider.
type Resolver struct {
	provider process.Provider
	log      *logger.Logger
}

func NewResolver(provider process.Provider) *Resolver {
	return &Resolver{
		provider: provider,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "module-resolver")),
	}
}

// ListModules returns the modules of pid in OS enumeration order. A process
// that does not exist or has nothing to enumerate yet is ErrNotFound.
func (r *Resolver) ListModules(pid process.ProcessID) ([]process.ModuleDescriptor, error) {
	modules, err := r.provider.ListModules(pid)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: no modules for pid %d", process.ErrNotFound, pid)
	}

	r.log.Debugln("Listed", len(modules), "modules for pid", pid)
	return modules, nil
}

// FindModule returns the first module of pid named exactly name. A live
// process without such a module is ErrModuleNotFound.
func (r *Resolver) FindModule(pid process.ProcessID, name string) (process.ModuleDescriptor, error) {
	modules, err := r.ListModules(pid)
	if err != nil {
		return process.ModuleDescriptor{}, err
	}

	if mod, ok := Find(modules, name); ok {
		return mod, nil
	}

	return process.ModuleDescriptor{}, fmt.Errorf("%w: '%s' in pid %d", process.ErrModuleNotFound, name, pid)
}

// GetBaseAddress returns the base of the module named like the process
// executable, which is where the main image is loaded.
func (r *Resolver) GetBaseAddress(processName string, pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	mod, err := r.FindModule(pid, processName)
	if err != nil {
		return 0, err
	}
	return mod.Base, nil
}

// Find returns the first module in modules named exactly name.
func Find(modules []process.ModuleDescriptor, name string) (process.ModuleDescriptor, bool) {
	for _, mod := range modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return process.ModuleDescriptor{}, false
}
