package pattern

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
	"procmem/process_blob"
	"procmem/reader"
)

const (
	testPID  = process.ProcessID(7)
	testBase = process.ProcessMemoryAddress(0x7FF600000000)
)

func newModule(t *testing.T, image []byte) (process.Handle, process.ModuleDescriptor) {
	t.Helper()
	s := process_blob.NewSnapshot()
	s.AddProcess(process.ProcessDescriptor{PID: testPID, ExeName: "game.exe"})
	mod := s.AddModule(testPID, "game.exe", "/opt/game/game.exe", testBase, image)

	h, err := s.Open(testPID)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, mod
}

func TestFindPatternNormal(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})

	res, err := NewScanner(nil).FindPattern(h, mod, "AA ?? CC", Normal, 0, 0)
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, 2, res.Offset)
	assert.Equal(t, testBase+2, res.Address)
}

func TestFindPatternSubtract(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})

	res, err := NewScanner(nil).FindPattern(h, mod, "AA ?? CC", Subtract, 0, 0x10)
	require.NoError(t, err)
	assert.Equal(t, Matched, res.Status)
	assert.Equal(t, process.ProcessMemoryAddress(0x12), res.Address)
}

func TestFindPatternModesAgree(t *testing.T) {
	image := make([]byte, 0x40)
	copy(image[0x10:], []byte{0x48, 0x8B, 0x05})
	binary.NativeEndian.PutUint64(image[0x13:], 0x1122334455667788)
	h, mod := newModule(t, image)
	s := NewScanner(reader.New())

	const patternOffset, addressOffset = 3, 0x20

	normal, err := s.FindPattern(h, mod, "48 8B 05", Normal, patternOffset, addressOffset)
	require.NoError(t, err)
	assert.Equal(t, testBase+0x13, normal.Address)
	assert.Equal(t, process.ProcessMemoryAddress(normal.Offset), normal.Address-testBase-patternOffset)

	subtract, err := s.FindPattern(h, mod, "48 8B 05", Subtract, patternOffset, addressOffset)
	require.NoError(t, err)
	assert.Equal(t, normal.Address-testBase+addressOffset, subtract.Address)

	read, err := s.FindPattern(h, mod, "48 8B 05", Read, patternOffset, addressOffset)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x1122334455667788+addressOffset), read.Address)
	assert.Equal(t, normal.Offset, read.Offset)
}

func TestFindPatternNotFound(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})

	res, err := NewScanner(nil).FindPattern(h, mod, "AA BB CD", Normal, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Status)
	assert.False(t, res.Found())
	assert.Zero(t, res.Address)
}

func TestFindPatternMalformed(t *testing.T) {
	h, mod := newModule(t, []byte{0x90})

	_, err := NewScanner(nil).FindPattern(h, mod, "ZZ", Normal, 0, 0)
	assert.ErrorIs(t, err, process.ErrMalformedPattern)
}

func TestFindPatternUnknownMode(t *testing.T) {
	h, mod := newModule(t, []byte{0x90})

	_, err := NewScanner(nil).FindPattern(h, mod, "90", Mode(9), 0, 0)
	assert.ErrorIs(t, err, process.ErrInvalidArgument)
}

func TestFindPatternMaxModuleSize(t *testing.T) {
	h, mod := newModule(t, make([]byte, 0x100))

	_, err := NewScanner(nil, WithMaxModuleSize(0x80)).FindPattern(h, mod, "00", Normal, 0, 0)
	assert.ErrorIs(t, err, process.ErrInvalidArgument)

	res, err := NewScanner(nil, WithMaxModuleSize(0x100)).FindPattern(h, mod, "00", Normal, 0, 0)
	require.NoError(t, err)
	assert.True(t, res.Found())
}

func TestFindPatternUnreadableTail(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0xAA})
	// the descriptor claims more than is mapped; the tail reads as zero
	mod.Size = 0x2000

	res, err := NewScanner(nil).FindPattern(h, mod, "AA 00 00", Normal, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Offset)

	_, err = NewScanner(reader.New(reader.WithPartialReadPolicy(reader.PartialReadStrict))).FindPattern(h, mod, "AA", Normal, 0, 0)
	assert.ErrorIs(t, err, process.ErrPartialRead)
}

func TestFindPatternInModules(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})
	modules := []process.ModuleDescriptor{mod}
	s := NewScanner(nil)

	res, err := s.FindPatternInModules(h, modules, "game.exe", "AA ?? CC", Normal, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, testBase+2, res.Address)

	res, err = s.FindPatternInModules(h, modules, "engine.dll", "AA ?? CC", Normal, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ModuleNotFound, res.Status)

	_, err = s.FindPatternInModules(h, modules, "engine.dll", "AA ?", Normal, 0, 0)
	require.NoError(t, err)

	_, err = s.FindPatternInModules(h, modules, "game.exe", "AA ?? C", Normal, 0, 0)
	assert.ErrorIs(t, err, process.ErrMalformedPattern)
}

func TestFindCompiledInModules(t *testing.T) {
	h, mod := newModule(t, []byte{0x90, 0x90, 0xAA, 0xBB, 0xCC, 0x90})
	modules := []process.ModuleDescriptor{mod}
	s := NewScanner(nil)
	p := MustParse("BB CC")

	res, err := s.FindCompiledInModules(h, modules, "game.exe", p, Subtract, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Matched, res.Status)
	assert.Equal(t, process.ProcessMemoryAddress(3), res.Address)

	res, err = s.FindCompiledInModules(h, modules, "engine.dll", p, Normal, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ModuleNotFound, res.Status)
}

func TestFindPatternModuleAboveBufferLimit(t *testing.T) {
	h, mod := newModule(t, make([]byte, 64))

	_, err := NewScanner(reader.New(reader.WithMaxBufferSize(32))).FindPattern(h, mod, "00", Normal, 0, 0)
	assert.ErrorIs(t, err, process.ErrInvalidArgument)
}
