package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"procmem/process"
)

// Mode selects how a match offset is turned into the returned value.
type Mode int

const (
	// Normal returns the absolute match address
	Normal Mode = 0
	// Read dereferences the match address as a pointer
	Read Mode = 1
	// Subtract returns the match address relative to the module base
	Subtract Mode = 2
)

var modeNames = map[Mode]string{
	Normal:   "NORMAL",
	Read:     "READ",
	Subtract: "SUBTRACT",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode accepts a mode name (any case) or its numeric value.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for mode, name := range modeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}

	if n, err := strconv.Atoi(s); err == nil && Mode(n).Valid() {
		return Mode(n), nil
	}

	return Normal, fmt.Errorf("%w: unknown scan mode '%s'", process.ErrInvalidArgument, s)
}
