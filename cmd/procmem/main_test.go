package main

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/config"
	"procmem/pattern"
	"procmem/process"
	"procmem/process/memory_map"
	"procmem/process_blob"
)

func saveFixture(t *testing.T) string {
	t.Helper()

	s := process_blob.NewSnapshot()
	s.AddProcess(process.ProcessDescriptor{PID: 500, Threads: 4, ExeName: "game.exe"})
	s.AddModule(500, "game.exe", `C:\game\game.exe`, 0x140000000, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})

	data := make([]byte, 0x40)
	binary.NativeEndian.PutUint32(data, 42)
	copy(data[0x10:], "player\x00")
	s.AddRegion(500, memory_map.Region{
		Base:    0x30000,
		Size:    0x1000,
		State:   memory_map.MEM_COMMIT,
		Protect: memory_map.PAGE_READWRITE,
		Type:    memory_map.MEM_PRIVATE,
		Perms:   "rw-p",
	}, data)

	dir := t.TempDir()
	require.NoError(t, s.Save(dir))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPs(t *testing.T) {
	out, err := run(t, "--dump", saveFixture(t), "ps")
	require.NoError(t, err)
	assert.Contains(t, out, "game.exe")
	assert.Contains(t, out, "500")
}

func TestModules(t *testing.T) {
	out, err := run(t, "--dump", saveFixture(t), "modules", "game.exe")
	require.NoError(t, err)
	assert.Contains(t, out, "0x140000000")
	assert.Contains(t, out, "6 B")
}

func TestRead(t *testing.T) {
	dir := saveFixture(t)

	out, err := run(t, "--dump", dir, "read", "500", "0x30000", "--type", "int")
	require.NoError(t, err)
	assert.Equal(t, "0x30000: 42\n", out)

	out, err = run(t, "--dump", dir, "string", "game.exe", "0x30010")
	require.NoError(t, err)
	assert.Equal(t, "player\n", out)

	_, err = run(t, "--dump", dir, "read", "game.exe", "0x30000", "--type", "matrix")
	assert.ErrorIs(t, err, process.ErrInvalidArgument)
}

func TestBufferRejectsHugeSize(t *testing.T) {
	dir := saveFixture(t)

	out, err := run(t, "--dump", dir, "buffer", "game.exe", "0x30000", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "2a 00 00 00")

	_, err = run(t, "--dump", dir, "buffer", "game.exe", "0x30000", "4EiB")
	assert.ErrorIs(t, err, process.ErrInvalidArgument)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procmem.yaml")

	out, err := run(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = run(t, "--config", path, "config", "init")
	assert.ErrorIs(t, err, process.ErrInvalidArgument)

	_, err = run(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestPattern(t *testing.T) {
	dir := saveFixture(t)

	out, err := run(t, "--dump", dir, "pattern", "game.exe", "game.exe", "AA ?? CC")
	require.NoError(t, err)
	assert.Contains(t, out, "NORMAL 0x140000002")

	out, err = run(t, "--dump", dir, "pattern", "game.exe", "game.exe", "AA ?? CC", "--mode", "subtract", "--address-offset", "16")
	require.NoError(t, err)
	assert.Contains(t, out, "SUBTRACT 0x12")

	out, err = run(t, "--dump", dir, "pattern", "game.exe", "game.exe", "DE AD")
	require.NoError(t, err)
	assert.Contains(t, out, "not found")

	_, err = run(t, "--dump", dir, "pattern", "game.exe", "engine.dll", "AA")
	assert.ErrorIs(t, err, process.ErrModuleNotFound)

	_, err = run(t, "--dump", dir, "pattern", "game.exe", "game.exe", "AA ?? C")
	assert.ErrorIs(t, err, process.ErrMalformedPattern)

	_, err = run(t, "--dump", dir, "pattern", "game.exe", "game.exe", "AA", "--mode", "sideways")
	assert.Error(t, err)
}

func TestOpenUnknownProcess(t *testing.T) {
	_, err := run(t, "--dump", saveFixture(t), "regions", "nothing.exe")
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestModeValue(t *testing.T) {
	var mode pattern.Mode
	v := newModeValue(&mode)

	require.NoError(t, v.Set("READ"))
	assert.Equal(t, pattern.Read, mode)
	assert.Equal(t, "READ", v.String())
	assert.Equal(t, "mode", v.Type())
	assert.Error(t, v.Set("5"))
}
