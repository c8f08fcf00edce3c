//go:build linux

package host

import (
	"procmem/process"
	"procmem/process_linux"
)

// NewProvider returns the provider for this operating system.
func NewProvider() (process.Provider, error) {
	return process_linux.NewProvider(), nil
}
