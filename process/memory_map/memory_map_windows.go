//go:build windows

package memory_map

import (
	"golang.org/x/sys/windows"
)

// FromBasicInformation converts a VirtualQueryEx result to a Region
func FromBasicInformation(mbi windows.MemoryBasicInformation) Region {
	return Region{
		Base:    uint64(mbi.BaseAddress),
		Size:    uint64(mbi.RegionSize),
		State:   mbi.State,
		Protect: mbi.Protect,
		Type:    mbi.Type,
		Perms:   PermsFromProtect(mbi.Protect, mbi.Type),
	}
}
