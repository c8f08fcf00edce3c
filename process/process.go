// Package process defines the data model, error kinds and OS collaborator
// interfaces used to inspect another process, plus the process resolver.
package process

import "errors"

var (
	// ErrNotFound is returned when a named or numbered process (or its module list) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the OS refuses to open or read a process.
	ErrAccessDenied = errors.New("access denied")

	// ErrModuleNotFound is returned when a live process has no module with the requested name.
	ErrModuleNotFound = errors.New("module not found")

	// ErrNoTerminator is returned when a string read reaches its limit without a zero byte.
	ErrNoTerminator = errors.New("no null-terminator found")

	// ErrMalformedPattern is returned when a signature string cannot be parsed.
	ErrMalformedPattern = errors.New("malformed pattern")

	// ErrPlatform is returned when an enumeration or query primitive fails for
	// reasons unrelated to the caller's input.
	ErrPlatform = errors.New("platform error")

	// ErrPartialRead is returned by strict readers when fewer bytes than requested were copied.
	ErrPartialRead = errors.New("partial read")

	// ErrInvalidHandle is returned when a handle token is unknown or already closed.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInvalidArgument is returned for caller errors such as an unknown data type.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorKind is the plain-value form of an error, for binding layers that
// cannot carry Go error values.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindAccessDenied
	KindModuleNotFound
	KindNoTerminator
	KindMalformedPattern
	KindPlatform
	KindPartialRead
	KindInvalidHandle
	KindInvalidArgument
)

var kindNames = map[ErrorKind]string{
	KindNone:             "NONE",
	KindNotFound:         "NOT_FOUND",
	KindAccessDenied:     "ACCESS_DENIED",
	KindModuleNotFound:   "MODULE_NOT_FOUND",
	KindNoTerminator:     "NO_TERMINATOR",
	KindMalformedPattern: "MALFORMED_PATTERN",
	KindPlatform:         "PLATFORM_ERROR",
	KindPartialRead:      "PARTIAL_READ",
	KindInvalidHandle:    "INVALID_HANDLE",
	KindInvalidArgument:  "INVALID_ARGUMENT",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// kindOrder is checked in sequence; ErrModuleNotFound must come before
// ErrNotFound so the two never collapse into one kind.
var kindOrder = []struct {
	err  error
	kind ErrorKind
}{
	{ErrModuleNotFound, KindModuleNotFound},
	{ErrNotFound, KindNotFound},
	{ErrAccessDenied, KindAccessDenied},
	{ErrNoTerminator, KindNoTerminator},
	{ErrMalformedPattern, KindMalformedPattern},
	{ErrPartialRead, KindPartialRead},
	{ErrInvalidHandle, KindInvalidHandle},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrPlatform, KindPlatform},
}

// KindOf classifies err. Errors that wrap none of the package sentinels are
// reported as KindPlatform.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindPlatform
}
