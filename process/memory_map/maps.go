package memory_map

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseMaps parses /proc/[pid]/maps content. Lines that do not parse are skipped.
func ParseMaps(r io.Reader) ([]Region, error) {
	var memoryMap []Region
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr <= startAddr {
			continue
		}

		perms := fields[1]
		path := ""
		if len(fields) >= 6 {
			path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, Region{
			Base:    startAddr,
			Size:    endAddr - startAddr,
			State:   MEM_COMMIT,
			Protect: ProtectFromPerms(perms),
			Type:    typeFromPath(path),
			Perms:   perms,
			Path:    path,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	Sort(memoryMap)
	return memoryMap, nil
}

// IsFileBacked reports whether a maps path names a file rather than a
// pseudo mapping such as [heap] or an anonymous region.
func IsFileBacked(path string) bool {
	return strings.HasPrefix(path, "/") && !strings.HasSuffix(path, " (deleted)")
}

func typeFromPath(path string) uint32 {
	if IsFileBacked(path) {
		return MEM_IMAGE
	}
	return MEM_PRIVATE
}
