package pattern

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/module"
	"procmem/process"
	"procmem/reader"
)

// Status is the outcome of a scan that ran without error.
type Status int

const (
	Matched Status = iota
	NotFound
	ModuleNotFound
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "MATCHED"
	case NotFound:
		return "NOT_FOUND"
	case ModuleNotFound:
		return "MODULE_NOT_FOUND"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result of a scan. Address holds the transformed value and Offset the raw
// match offset inside the module image; both are only set when Matched.
type Result struct {
	Status  Status
	Address process.ProcessMemoryAddress
	Offset  int
}

// Found reports whether the scan matched
func (r Result) Found() bool {
	return r.Status == Matched
}

// Scanner reads module images through a reader.Reader and scans them.
type Scanner struct {
	reader        *reader.Reader
	maxModuleSize process.ProcessMemorySize
	log           *logger.Logger
}

// ScannerOption is a function that configures a Scanner
type ScannerOption func(*Scanner)

// WithMaxModuleSize refuses to scan modules larger than size. Zero means no limit.
func WithMaxModuleSize(size process.ProcessMemorySize) ScannerOption {
	return func(s *Scanner) {
		s.maxModuleSize = size
	}
}

// NewScanner creates a Scanner. A nil reader gets the default reader.
func NewScanner(r *reader.Reader, options ...ScannerOption) *Scanner {
	if r == nil {
		r = reader.New()
	}

	s := &Scanner{
		reader: r,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "pattern-scanner")),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// FindPattern parses text and scans mod for its first occurrence. A malformed
// signature is an error; a signature that does not occur is a NotFound result.
func (s *Scanner) FindPattern(mem process.MemoryAccess, mod process.ModuleDescriptor, text string, mode Mode, patternOffset, addressOffset uint64) (Result, error) {
	p, err := Parse(text)
	if err != nil {
		return Result{}, err
	}
	return s.FindCompiled(mem, mod, p, mode, patternOffset, addressOffset)
}

// FindCompiled scans mod for p. The absolute match address is
// base + offset + patternOffset, then mode applies:
//
//	Normal:   absolute
//	Read:     pointer stored at absolute, plus addressOffset
//	Subtract: absolute - base + addressOffset
func (s *Scanner) FindCompiled(mem process.MemoryAccess, mod process.ModuleDescriptor, p Pattern, mode Mode, patternOffset, addressOffset uint64) (Result, error) {
	if !mode.Valid() {
		return Result{}, fmt.Errorf("%w: unknown scan mode %d", process.ErrInvalidArgument, int(mode))
	}
	if p.Len() == 0 {
		return Result{}, fmt.Errorf("%w: empty signature", process.ErrMalformedPattern)
	}
	if s.maxModuleSize > 0 && mod.Size > s.maxModuleSize {
		return Result{}, fmt.Errorf("%w: module %s is %s, limit is %s", process.ErrInvalidArgument, mod.Name, mod.Size.ToString(), s.maxModuleSize.ToString())
	}

	image, err := s.reader.ReadBuffer(mem, mod.Base, mod.Size)
	if err != nil {
		return Result{}, fmt.Errorf("read module %s: %w", mod.Name, err)
	}

	offset := p.Find(image)
	if offset < 0 {
		s.log.Debugln("Pattern", p.String(), "not found in", mod.Name)
		return Result{Status: NotFound}, nil
	}

	absolute := mod.Base + process.ProcessMemoryAddress(offset) + process.ProcessMemoryAddress(patternOffset)

	var address process.ProcessMemoryAddress
	switch mode {
	case Normal:
		address = absolute
	case Read:
		ptr, err := s.reader.ReadPointer(mem, absolute)
		if err != nil {
			return Result{}, fmt.Errorf("read pointer at match %s: %w", absolute.ToString(), err)
		}
		address = ptr + process.ProcessMemoryAddress(addressOffset)
	case Subtract:
		address = absolute - mod.Base + process.ProcessMemoryAddress(addressOffset)
	}

	s.log.Infoln("Pattern found in", mod.Name, "at offset", fmt.Sprintf("0x%X", offset), mode.String(), address.ToString())
	return Result{Status: Matched, Address: address, Offset: offset}, nil
}

// FindPatternInModules looks moduleName up in modules and scans it. A
// missing module is a ModuleNotFound result and nothing is read.
func (s *Scanner) FindPatternInModules(mem process.MemoryAccess, modules []process.ModuleDescriptor, moduleName, text string, mode Mode, patternOffset, addressOffset uint64) (Result, error) {
	p, err := Parse(text)
	if err != nil {
		return Result{}, err
	}
	return s.FindCompiledInModules(mem, modules, moduleName, p, mode, patternOffset, addressOffset)
}

// FindCompiledInModules is FindPatternInModules for an already parsed pattern.
func (s *Scanner) FindCompiledInModules(mem process.MemoryAccess, modules []process.ModuleDescriptor, moduleName string, p Pattern, mode Mode, patternOffset, addressOffset uint64) (Result, error) {
	mod, ok := module.Find(modules, moduleName)
	if !ok {
		s.log.Debugln("Module", moduleName, "not loaded, skipping scan")
		return Result{Status: ModuleNotFound}, nil
	}

	return s.FindCompiled(mem, mod, p, mode, patternOffset, addressOffset)
}
