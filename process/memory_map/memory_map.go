// Package memory_map models the virtual address space of a process as a
// sequence of regions and walks it.
package memory_map

import (
	"fmt"
	"sort"
)

// Protection flags, as reported by VirtualQueryEx.
const (
	PAGE_NOACCESS          = 0x01
	PAGE_READONLY          = 0x02
	PAGE_READWRITE         = 0x04
	PAGE_WRITECOPY         = 0x08
	PAGE_EXECUTE           = 0x10
	PAGE_EXECUTE_READ      = 0x20
	PAGE_EXECUTE_READWRITE = 0x40
	PAGE_EXECUTE_WRITECOPY = 0x80
	PAGE_GUARD             = 0x100
	PAGE_NOCACHE           = 0x200
	PAGE_WRITECOMBINE      = 0x400
)

// Allocation states and page types.
const (
	MEM_COMMIT  = 0x00001000
	MEM_RESERVE = 0x00002000
	MEM_FREE    = 0x00010000

	MEM_PRIVATE = 0x20000
	MEM_MAPPED  = 0x40000
	MEM_IMAGE   = 0x1000000
)

const (
	readableMask   = PAGE_READONLY | PAGE_READWRITE | PAGE_WRITECOPY | PAGE_EXECUTE_READ | PAGE_EXECUTE_READWRITE | PAGE_EXECUTE_WRITECOPY
	writableMask   = PAGE_READWRITE | PAGE_WRITECOPY | PAGE_EXECUTE_READWRITE | PAGE_EXECUTE_WRITECOPY
	executableMask = PAGE_EXECUTE | PAGE_EXECUTE_READ | PAGE_EXECUTE_READWRITE | PAGE_EXECUTE_WRITECOPY
)

// Region represents one contiguous range of a process's address space
type Region struct {
	Base    uint64 // The starting address of the region
	Size    uint64 // The size of the region in bytes
	State   uint32 // MEM_COMMIT, MEM_RESERVE or MEM_FREE
	Protect uint32 // PAGE_* protection flags
	Type    uint32 // MEM_IMAGE, MEM_MAPPED or MEM_PRIVATE (zero for free regions)
	Perms   string // Permissions in /proc maps notation (e.g. "r-xp")
	Path    string // Backing file, if any
}

// End returns the first address past the region
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// String returns a string representation of the region
func (r Region) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, State: %x, Protect: %x, Perms: %s %s", r.Base, r.Size, r.State, r.Protect, r.Perms, r.Path)
}

func (r Region) IsCommitted() bool {
	return r.State == MEM_COMMIT
}

func (r Region) IsFree() bool {
	return r.State == MEM_FREE
}

func (r Region) IsReadable() bool {
	return r.IsCommitted() && r.Protect&PAGE_GUARD == 0 && r.Protect&readableMask != 0
}

func (r Region) IsWritable() bool {
	return r.IsCommitted() && r.Protect&PAGE_GUARD == 0 && r.Protect&writableMask != 0
}

func (r Region) IsExecutable() bool {
	return r.IsCommitted() && r.Protect&executableMask != 0
}

// Querier describes the region containing an address. ok is false once addr
// is past the end of the address space; that is not an error.
type Querier interface {
	QueryRegion(addr uint64) (region Region, ok bool, err error)
}

// Refresher is implemented by queriers that cache the memory map.
type Refresher interface {
	Refresh() error
}

// IsReadablePerms checks if a maps permission string has read access
func IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

// IsWritablePerms checks if a maps permission string has write access
func IsWritablePerms(perms string) bool {
	return len(perms) > 1 && perms[1] == 'w'
}

// IsExecutablePerms checks if a maps permission string has execute access
func IsExecutablePerms(perms string) bool {
	return len(perms) > 2 && perms[2] == 'x'
}

// ProtectFromPerms converts a maps permission string to PAGE_* flags.
func ProtectFromPerms(perms string) uint32 {
	r, w, x := IsReadablePerms(perms), IsWritablePerms(perms), IsExecutablePerms(perms)
	switch {
	case x && w:
		return PAGE_EXECUTE_READWRITE
	case x && r:
		return PAGE_EXECUTE_READ
	case x:
		return PAGE_EXECUTE
	case w:
		return PAGE_READWRITE
	case r:
		return PAGE_READONLY
	}
	return PAGE_NOACCESS
}

// PermsFromProtect converts PAGE_* flags to a maps permission string.
func PermsFromProtect(protect uint32, regionType uint32) string {
	perms := []byte("---p")
	if protect&PAGE_GUARD == 0 {
		if protect&readableMask != 0 {
			perms[0] = 'r'
		}
		if protect&writableMask != 0 {
			perms[1] = 'w'
		}
		if protect&executableMask != 0 {
			perms[2] = 'x'
		}
	}
	if regionType == MEM_MAPPED || regionType == MEM_IMAGE {
		perms[3] = 's'
	}
	return string(perms)
}

// Sort orders regions by base address in place.
func Sort(regions []Region) {
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Base < regions[j].Base
	})
}

// Find returns the region containing addr. regions must be sorted.
func Find(regions []Region, addr uint64) *Region {
	i := sort.Search(len(regions), func(i int) bool {
		return regions[i].End() > addr
	})
	if i < len(regions) && regions[i].Base <= addr {
		return &regions[i]
	}

	return nil
}

// Lookup answers a region query from a sorted list of mapped regions.
// Addresses inside a mapping yield the rest of that mapping; addresses in a
// gap yield a MEM_FREE region up to the next mapping. Past the last mapping
// there is no region.
func Lookup(mapped []Region, addr uint64) (Region, bool) {
	i := sort.Search(len(mapped), func(i int) bool {
		return mapped[i].End() > addr
	})
	if i == len(mapped) {
		return Region{}, false
	}

	next := mapped[i]
	if next.Base <= addr {
		next.Size = next.End() - addr
		next.Base = addr
		return next, true
	}

	return Region{
		Base:    addr,
		Size:    next.Base - addr,
		State:   MEM_FREE,
		Protect: PAGE_NOACCESS,
		Perms:   "---p",
	}, true
}

// Within returns the regions that overlap [base, base+size).
func Within(regions []Region, base, size uint64) []Region {
	end := base + size
	var result []Region
	for _, r := range regions {
		if r.Base < end && r.End() > base {
			result = append(result, r)
		}
	}
	return result
}
