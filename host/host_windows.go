//go:build windows

package host

import (
	"procmem/process"
	"procmem/process_windows"
)

// NewProvider returns the provider for this operating system.
func NewProvider() (process.Provider, error) {
	return process_windows.NewProvider(), nil
}
