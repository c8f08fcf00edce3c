//go:build windows

package process_windows

import (
	"os"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
	"procmem/process/memory_map"
	"procmem/reader"
)

func TestDescribeSelf(t *testing.T) {
	desc, err := NewProvider().DescribeProcess(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.ToLower(desc.ExeName), ".exe"))
	assert.Positive(t, desc.Threads)
}

func TestOpenMissingProcess(t *testing.T) {
	_, err := NewProvider().DescribeProcess(process.ProcessID(0x7FFFFFF0))
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestReadOwnMemory(t *testing.T) {
	h, err := NewProvider().Open(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	defer h.Close()

	value := uint32(0xCAFEBABE)
	got, err := reader.ReadValue[uint32](reader.New(), h, process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&value))))
	require.NoError(t, err)
	assert.Equal(t, value, got)

	n, err := h.ReadMemory(0, make([]byte, 4))
	require.NoError(t, err)
	assert.Zero(t, n)

	regions, err := memory_map.Enumerate(h)
	require.NoError(t, err)
	assert.NotEmpty(t, regions)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = h.ReadMemory(0, make([]byte, 4))
	assert.ErrorIs(t, err, process.ErrInvalidHandle)
}

func TestListOwnModules(t *testing.T) {
	modules, err := NewProvider().ListModules(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	require.NotEmpty(t, modules)

	found := false
	for _, mod := range modules {
		if strings.EqualFold(mod.Name, "kernel32.dll") {
			found = true
		}
	}
	assert.True(t, found)
}
