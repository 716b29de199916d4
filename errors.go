package pecore

import (
	"errors"
	"fmt"
)

// Error taxonomy (spec §7). Loader, address-space and read-helper failures
// return one of these, wrapped with context via fmt.Errorf("...: %w", ...)
// so callers can still errors.Is against the sentinel. SymbolTable rename
// conflicts are plain errors that wrap none of them.
var (
	// ErrNotSupported means no loader recognized the input buffer.
	ErrNotSupported = errors.New("pecore: buffer not supported by any loader")
	// ErrInvalidAddress means a read or write targeted an unmapped RVA.
	ErrInvalidAddress = errors.New("pecore: address not mapped")
	// ErrBufferOverrun means a read crossed beyond the mapped region.
	ErrBufferOverrun = errors.New("pecore: read crosses unmapped region")
	// ErrInvalidInstruction means the decoder rejected the bytes at a
	// requested address.
	ErrInvalidInstruction = errors.New("pecore: could not decode instruction")
	// ErrInvalidRelocType means a relocation entry carried an unknown type
	// code.
	ErrInvalidRelocType = errors.New("pecore: unsupported relocation type")
	// ErrParseError means the input PE or FLIRT signature file was malformed.
	ErrParseError = errors.New("pecore: malformed input")
)

// DiagnosticLevel classifies the severity of a Diagnostic.
type DiagnosticLevel int

const (
	// LevelWarning records a condition that was handled by skipping work.
	LevelWarning DiagnosticLevel = iota
	// LevelError records an analyzer failure that did not abort the build.
	LevelError
)

func (l DiagnosticLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal event recorded during analysis: an analyzer
// failure, an unsupported relocation type, a FLIRT ambiguity. Builders in
// strict mode (see Builder.EnableStrictMode) promote the first Diagnostic at LevelError into a
// hard error from Build; otherwise diagnostics simply accumulate on the
// Workspace for the caller to inspect.
type Diagnostic struct {
	Level  DiagnosticLevel
	Source string // analyzer or subsystem name that raised it
	RVA    RVA
	HasRVA bool
	Message string
}

func (d Diagnostic) String() string {
	if d.HasRVA {
		return fmt.Sprintf("%s: %s: %s (%s)", d.Level, d.Source, d.Message, d.RVA)
	}
	return fmt.Sprintf("%s: %s: %s", d.Level, d.Source, d.Message)
}
