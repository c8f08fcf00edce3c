//go:build linux

package memory_map

import (
	"fmt"
	"os"
)

// ReadMemoryMap reads and parses the memory map for a process from /proc/[pid]/maps
func ReadMemoryMap(pid int) ([]Region, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMaps(file)
}
