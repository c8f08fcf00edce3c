package process_linux

import (
	"path/filepath"

	"procmem/process"
	"procmem/process/memory_map"
)

// ModulesFromMaps groups the file-backed mappings of a process into modules,
// in order of first appearance. A module spans from its lowest mapping to the
// end of its highest one.
func ModulesFromMaps(pid process.ProcessID, regions []memory_map.Region) []process.ModuleDescriptor {
	var modules []process.ModuleDescriptor
	index := make(map[string]int)

	for _, region := range regions {
		if !memory_map.IsFileBacked(region.Path) {
			continue
		}

		base := process.ProcessMemoryAddress(region.Base)
		end := process.ProcessMemoryAddress(region.End())

		i, ok := index[region.Path]
		if !ok {
			index[region.Path] = len(modules)
			modules = append(modules, process.ModuleDescriptor{
				Base: base,
				Size: process.ProcessMemorySize(end - base),
				Name: filepath.Base(region.Path),
				Path: region.Path,
				PID:  pid,
			})
			continue
		}

		mod := &modules[i]
		if base < mod.Base {
			mod.Size += process.ProcessMemorySize(mod.Base - base)
			mod.Base = base
		}
		if end > mod.End() {
			mod.Size = process.ProcessMemorySize(end - mod.Base)
		}
	}

	return modules
}
