package process_blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
	"procmem/process/memory_map"
)

func newTestSnapshot() *Snapshot {
	s := NewSnapshot()
	s.AddProcess(process.ProcessDescriptor{PID: 42, ParentPID: 1, Threads: 3, ExeName: "game.exe"})
	s.AddModule(42, "game.exe", `C:\game\game.exe`, 0x400000, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})
	s.AddRegion(42, memory_map.Region{
		Base:    0x500000,
		Size:    0x10,
		State:   memory_map.MEM_COMMIT,
		Protect: memory_map.PAGE_READWRITE,
		Type:    memory_map.MEM_PRIVATE,
		Perms:   "rw-p",
	}, []byte("hello\x00world"))
	return s
}

func TestSnapshotReadStopsAtGap(t *testing.T) {
	s := newTestSnapshot()
	h, err := s.Open(42)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 4)
	n, err := h.ReadMemory(0x400002, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0x90}, buf)

	buf = make([]byte, 8)
	n, err = h.ReadMemory(0x400004, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.ReadMemory(0x1000, buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSnapshotOpenErrors(t *testing.T) {
	s := newTestSnapshot()

	_, err := s.Open(7)
	assert.ErrorIs(t, err, process.ErrNotFound)

	s.Deny(42, "protected process")
	_, err = s.Open(42)
	require.ErrorIs(t, err, process.ErrAccessDenied)
	assert.Contains(t, err.Error(), "protected process")
}

func TestSnapshotHandleAfterClose(t *testing.T) {
	s := newTestSnapshot()
	h, err := s.Open(42)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.ReadMemory(0x400000, make([]byte, 1))
	assert.ErrorIs(t, err, process.ErrInvalidHandle)
}

func TestSnapshotProcessExit(t *testing.T) {
	s := newTestSnapshot()
	h, err := s.Open(42)
	require.NoError(t, err)

	s.RemoveProcess(42)
	_, err = h.ReadMemory(0x400000, make([]byte, 1))
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestCaptureSaveLoad(t *testing.T) {
	s := newTestSnapshot()
	h, err := s.Open(42)
	require.NoError(t, err)
	defer h.Close()

	desc, err := s.DescribeProcess(42)
	require.NoError(t, err)
	modules, err := s.ListModules(42)
	require.NoError(t, err)

	captured, err := Capture(h, desc, modules, 0)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, captured.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	processes, err := loaded.ListProcesses()
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, desc, processes[0])

	loadedModules, err := loaded.ListModules(42)
	require.NoError(t, err)
	assert.Equal(t, modules, loadedModules)

	lh, err := loaded.Open(42)
	require.NoError(t, err)
	defer lh.Close()

	buf := make([]byte, 11)
	n, err := lh.ReadMemory(0x500000, buf)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello\x00world", string(buf))

	regions, err := memory_map.Enumerate(lh)
	require.NoError(t, err)
	assert.Len(t, memory_map.Within(regions, 0x400000, 6), 1)
}

func TestCaptureSkipsLargeRegions(t *testing.T) {
	s := newTestSnapshot()
	h, err := s.Open(42)
	require.NoError(t, err)
	desc, _ := s.DescribeProcess(42)

	captured, err := Capture(h, desc, nil, 8)
	require.NoError(t, err)

	ch, err := captured.Open(42)
	require.NoError(t, err)

	n, err := ch.ReadMemory(0x400000, make([]byte, 6))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = ch.ReadMemory(0x500000, make([]byte, 4))
	require.NoError(t, err)
	assert.Zero(t, n)
}
