//go:build linux

package process_linux

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
	"procmem/process/memory_map"
	"procmem/reader"
)

func openSelf(t *testing.T) process.Handle {
	t.Helper()
	h, err := NewProvider().Open(process.ProcessID(os.Getpid()))
	if process.KindOf(err) == process.KindAccessDenied {
		t.Skip("no access to own /proc/self/mem:", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestDescribeSelf(t *testing.T) {
	desc, err := NewProvider().DescribeProcess(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	assert.Equal(t, process.ProcessID(os.Getpid()), desc.PID)
	assert.Equal(t, process.ProcessID(os.Getppid()), desc.ParentPID)
	assert.NotEmpty(t, desc.ExeName)
	assert.Positive(t, desc.Threads)
}

func TestDescribeMissingProcess(t *testing.T) {
	_, err := NewProvider().DescribeProcess(process.ProcessID(1 << 30))
	assert.ErrorIs(t, err, process.ErrNotFound)

	_, err = NewProvider().Open(process.ProcessID(1 << 30))
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestListProcessesIncludesSelf(t *testing.T) {
	procs, err := NewProvider().ListProcesses()
	require.NoError(t, err)

	found := false
	for _, p := range procs {
		if p.PID == process.ProcessID(os.Getpid()) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReadOwnMemory(t *testing.T) {
	h := openSelf(t)

	value := uint64(0x0123456789ABCDEF)
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&value)))

	got, err := reader.ReadValue[uint64](reader.New(), h, addr)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	buf := make([]byte, 8)
	n, err := h.ReadMemory(0, buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnumerateOwnRegions(t *testing.T) {
	h := openSelf(t)

	regions, err := memory_map.Enumerate(h)
	require.NoError(t, err)
	require.NotEmpty(t, regions)

	assert.Zero(t, regions[0].Base)
	for i := 1; i < len(regions); i++ {
		assert.Equal(t, regions[i-1].End(), regions[i].Base)
	}
}

func TestListOwnModules(t *testing.T) {
	modules, err := NewProvider().ListModules(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	require.NotEmpty(t, modules)

	exe, err := os.Executable()
	require.NoError(t, err)

	found := false
	for _, mod := range modules {
		assert.Positive(t, uint64(mod.Size))
		if mod.Path == exe {
			found = true
		}
	}
	assert.True(t, found, "executable %s not among modules", exe)
}

func TestClosedHandle(t *testing.T) {
	h := openSelf(t)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err := h.ReadMemory(0x1000, make([]byte, 4))
	assert.ErrorIs(t, err, process.ErrInvalidHandle)

	_, _, err = h.QueryRegion(0)
	assert.ErrorIs(t, err, process.ErrInvalidHandle)
}
