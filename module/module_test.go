package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
	"procmem/process_blob"
)

func newSnapshot() *process_blob.Snapshot {
	s := process_blob.NewSnapshot()
	s.AddProcess(process.ProcessDescriptor{PID: 10, ExeName: "game.exe"})
	s.AddModule(10, "game.exe", `C:\Games\game.exe`, 0x140000000, []byte{0x4D, 0x5A, 0x90, 0x00})
	s.AddModule(10, "client.dll", `C:\Games\client.dll`, 0x7FF800000000, []byte{0x4D, 0x5A})
	s.AddModule(10, "client.dll", `C:\Games\bin\client.dll`, 0x7FF900000000, []byte{0x4D, 0x5A})

	s.AddProcess(process.ProcessDescriptor{PID: 11, ExeName: "starting.exe"})
	return s
}

func TestListModules(t *testing.T) {
	r := NewResolver(newSnapshot())

	modules, err := r.ListModules(10)
	require.NoError(t, err)
	require.Len(t, modules, 3)
	assert.Equal(t, "game.exe", modules[0].Name)
	assert.Equal(t, process.ProcessMemorySize(4), modules[0].Size)
	assert.Equal(t, process.ProcessID(10), modules[0].PID)
}

func TestListModulesNotFound(t *testing.T) {
	r := NewResolver(newSnapshot())

	_, err := r.ListModules(999)
	assert.ErrorIs(t, err, process.ErrNotFound)

	_, err = r.ListModules(11)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestFindModule(t *testing.T) {
	r := NewResolver(newSnapshot())

	mod, err := r.FindModule(10, "client.dll")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x7FF800000000), mod.Base)
	assert.Equal(t, `C:\Games\client.dll`, mod.Path)

	_, err = r.FindModule(10, "CLIENT.DLL")
	assert.ErrorIs(t, err, process.ErrModuleNotFound)
	assert.NotErrorIs(t, err, process.ErrNotFound)
	assert.Equal(t, process.KindModuleNotFound, process.KindOf(err))

	_, err = r.FindModule(999, "client.dll")
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestGetBaseAddress(t *testing.T) {
	r := NewResolver(newSnapshot())

	base, err := r.GetBaseAddress("game.exe", 10)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x140000000), base)

	_, err = r.GetBaseAddress("other.exe", 10)
	assert.ErrorIs(t, err, process.ErrModuleNotFound)
}
