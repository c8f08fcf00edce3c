//go:build !linux && !windows

package host

import (
	"fmt"
	"runtime"

	"procmem/process"
)

// NewProvider reports ErrPlatform: only linux and windows are supported.
func NewProvider() (process.Provider, error) {
	return nil, fmt.Errorf("%w: unsupported operating system %s", process.ErrPlatform, runtime.GOOS)
}
