// Package reader reads typed values, strings and raw buffers out of a
// target process.
//
// Reads are best effort by default: when the OS copies fewer bytes than
// requested because part of the range is unmapped, the missing bytes are
// left zero and no error is reported. PartialReadStrict turns that into
// ErrPartialRead. Access failures and a vanished process are always errors.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/process"
)

// DefaultStringLimit bounds ReadString so a missing terminator cannot make it
// walk the whole address space.
const DefaultStringLimit = 1_000_000

// DefaultPageSize is the granularity used to skip over unreadable pages.
const DefaultPageSize = 0x1000

// DefaultMaxBufferSize bounds a single ReadBuffer allocation.
const DefaultMaxBufferSize = 1 << 30

// PartialReadPolicy selects what happens when fewer bytes than requested are copied.
type PartialReadPolicy int

const (
	// PartialReadTolerate leaves uncopied bytes zero and reports success
	PartialReadTolerate PartialReadPolicy = iota
	// PartialReadStrict reports ErrPartialRead
	PartialReadStrict
)

func (p PartialReadPolicy) String() string {
	switch p {
	case PartialReadTolerate:
		return "tolerate"
	case PartialReadStrict:
		return "strict"
	}
	return fmt.Sprintf("PartialReadPolicy(%d)", int(p))
}

// ParsePartialReadPolicy parses "tolerate" or "strict".
func ParsePartialReadPolicy(s string) (PartialReadPolicy, error) {
	switch s {
	case "", "tolerate":
		return PartialReadTolerate, nil
	case "strict":
		return PartialReadStrict, nil
	}
	return 0, fmt.Errorf("%w: unknown partial read policy '%s'", process.ErrInvalidArgument, s)
}

// Reader reads memory through a process.MemoryAccess
type Reader struct {
	partial       PartialReadPolicy
	stringLimit   int
	pageSize      uint64
	maxBufferSize process.ProcessMemorySize
	log           *logger.Logger
}

// Option is a function that configures a Reader
type Option func(*Reader)

func WithPartialReadPolicy(policy PartialReadPolicy) Option {
	return func(r *Reader) {
		r.partial = policy
	}
}

func WithStringLimit(limit int) Option {
	return func(r *Reader) {
		if limit > 0 {
			r.stringLimit = limit
		}
	}
}

func WithPageSize(size uint64) Option {
	return func(r *Reader) {
		if size > 0 && size&(size-1) == 0 {
			r.pageSize = size
		}
	}
}

// WithMaxBufferSize makes ReadBuffer refuse sizes above size. Zero keeps the default.
func WithMaxBufferSize(size process.ProcessMemorySize) Option {
	return func(r *Reader) {
		if size > 0 {
			r.maxBufferSize = size
		}
	}
}

// New creates a Reader
func New(options ...Option) *Reader {
	r := &Reader{
		partial:       PartialReadTolerate,
		stringLimit:   DefaultStringLimit,
		pageSize:      DefaultPageSize,
		maxBufferSize: DefaultMaxBufferSize,
		log:           logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "reader")),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// PartialReadPolicy returns the configured policy
func (r *Reader) PartialReadPolicy() PartialReadPolicy {
	return r.partial
}

// StringLimit returns the maximum number of bytes ReadString will examine
func (r *Reader) StringLimit() int {
	return r.stringLimit
}

// MaxBufferSize returns the largest size ReadBuffer accepts
func (r *Reader) MaxBufferSize() process.ProcessMemorySize {
	return r.maxBufferSize
}

// ReadBuffer reads size bytes starting at addr. Pages that cannot be read are
// skipped and stay zero in the result. Sizes above the buffer limit fail with
// ErrInvalidArgument before anything is allocated.
func (r *Reader) ReadBuffer(mem process.MemoryAccess, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size > r.maxBufferSize {
		return nil, fmt.Errorf("%w: buffer of %s exceeds limit of %s", process.ErrInvalidArgument, size.ToString(), r.maxBufferSize.ToString())
	}

	buf := make([]byte, size)
	if err := r.fill(mem, addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// fill copies memory at addr into buf, continuing at the next page boundary
// whenever the OS stops short.
func (r *Reader) fill(mem process.MemoryAccess, addr process.ProcessMemoryAddress, buf []byte) error {
	var copied, off uint64
	total := uint64(len(buf))

	for off < total {
		n, err := mem.ReadMemory(addr+process.ProcessMemoryAddress(off), buf[off:])
		if err != nil {
			return fmt.Errorf("read %d bytes at %s: %w", total-off, (addr + process.ProcessMemoryAddress(off)).ToString(), err)
		}
		copied += uint64(n)
		off += uint64(n)
		if off >= total {
			break
		}

		// skip the page that stopped the copy
		cur := uint64(addr) + off
		next := (cur | (r.pageSize - 1)) + 1
		if next <= cur {
			break
		}
		off += next - cur
	}

	if copied < total {
		if r.partial == PartialReadStrict {
			return fmt.Errorf("%w: %d of %d bytes at %s", process.ErrPartialRead, copied, total, addr.ToString())
		}
		r.log.Debugln("Partial read at", addr.ToString(), copied, "of", total, "bytes")
	}

	return nil
}

// ReadString reads a zero-terminated string one byte at a time, so it never
// reads past the terminator. If no terminator appears within the string
// limit it fails with ErrNoTerminator and returns nothing.
func (r *Reader) ReadString(mem process.MemoryAccess, addr process.ProcessMemoryAddress) (string, error) {
	var chars []byte
	one := make([]byte, 1)

	for offset := 0; offset < r.stringLimit; offset++ {
		one[0] = 0
		if err := r.fill(mem, addr+process.ProcessMemoryAddress(offset), one); err != nil {
			return "", err
		}
		if one[0] == 0 {
			return string(chars), nil
		}
		chars = append(chars, one[0])
	}

	return "", fmt.Errorf("%w after %d bytes at %s", process.ErrNoTerminator, r.stringLimit, addr.ToString())
}

// ReadPointer reads a process.PointerSize wide value
func (r *Reader) ReadPointer(mem process.MemoryAccess, addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := r.ReadBuffer(mem, addr, process.PointerSize)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(binary.NativeEndian.Uint64(data)), nil
}

// ErrNullPointer is returned by ReadPath when a hop dereferences to zero.
var ErrNullPointer = errors.New("null pointer")

// ReadPath walks a pointer chain. Every offset but the last is added to the
// current address and dereferenced; the last offset is added to the final
// pointer and the resulting address is returned. With no offsets it returns base.
//
//	// base -> [ +0 ]ptrA -> [ +24 ]ptrB, field at ptrB+144
//	addr, err := r.ReadPath(h, base, 0, 24, 144)
func (r *Reader) ReadPath(mem process.MemoryAccess, base process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	current := base
	if len(offsets) == 0 {
		return current, nil
	}

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := current + process.ProcessMemoryAddress(offsets[i])

		ptr, err := r.ReadPointer(mem, ptrAddr)
		if err != nil {
			return 0, fmt.Errorf("failed to read pointer at step %d (addr %s): %w", i, ptrAddr.ToString(), err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("%w at step %d (addr %s)", ErrNullPointer, i, ptrAddr.ToString())
		}

		current = ptr
	}

	return current + process.ProcessMemoryAddress(offsets[len(offsets)-1]), nil
}
