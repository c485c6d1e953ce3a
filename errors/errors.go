package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode    Phase = "decode"    // unit bytes to instructions
	PhaseEncode    Phase = "encode"    // instructions to unit bytes
	PhaseAnalyze   Phase = "analyze"   // CFG, frames, liveness
	PhaseTransform Phase = "transform" // state machine construction
	PhaseVerify    Phase = "verify"    // re-verification of emitted code
	PhaseRuntime   Phase = "runtime"   // vm execution
	PhaseLoad      Phase = "load"      // unit loading into the vm
	PhaseParse     Phase = "parse"     // assembler text parsing
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindIllegalUsage   Kind = "illegal_usage"
	KindInternal       Kind = "internal"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindStackUnderflow Kind = "stack_underflow"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string
	Type     string
	Detail   string
	Path     []string
	Instr    int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
		if e.Instr >= 0 {
			fmt.Fprintf(&b, "@%d", e.Instr)
		}
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
			Instr: -1,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Function sets the function the error belongs to
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Instr sets the instruction index within the function
func (b *Builder) Instr(idx int) *Builder {
	b.err.Instr = idx
	return b
}

// Type sets the offending type descriptor
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Decode creates a malformed-input error for one function or unit.
func Decode(function string, cause error) *Error {
	return &Error{
		Phase:    PhaseDecode,
		Kind:     KindInvalidData,
		Function: function,
		Instr:    -1,
		Cause:    cause,
	}
}

// IllegalUsage creates the diagnostic raised when a suspend call appears in a
// function whose result type is not future-like.
func IllegalUsage(function string, instr int, detail string) *Error {
	return &Error{
		Phase:    PhaseTransform,
		Kind:     KindIllegalUsage,
		Function: function,
		Instr:    instr,
		Detail:   detail,
	}
}

// TypeMismatch creates a type mismatch error found while analyzing frames
func TypeMismatch(phase Phase, function string, instr int, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Function: function,
		Instr:    instr,
		Type:     got,
		Detail:   fmt.Sprintf("expected %s", want),
	}
}

// Verify creates an emitted-code verification failure.
// These always indicate a bug in the transform, never bad input.
func Verify(function string, cause error) *Error {
	return &Error{
		Phase:    PhaseVerify,
		Kind:     KindInternal,
		Function: function,
		Instr:    -1,
		Detail:   "emitted function failed verification",
		Cause:    cause,
	}
}

// Internal creates an invariant violation error
func Internal(phase Phase, function, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInternal,
		Function: function,
		Instr:    -1,
		Detail:   detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Instr:  -1,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Instr:  -1,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Instr:  -1,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Instr:  -1,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Instr:  -1,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Instr:  -1,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Instr:  -1,
		Detail: detail,
	}
}

// Load creates a unit loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Instr:  -1,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Instr:  -1,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// FailedFile is one entry of a batch failure.
type FailedFile struct {
	Path  string
	Cause error
}

// BatchError is returned by batch tooling when at least one file failed.
// Successfully transformed files are still written.
type BatchError struct {
	Files []FailedFile
}

func (e *BatchError) Error() string {
	if len(e.Files) == 0 {
		return "[transform] batch: no failures recorded"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) failed:\n", len(e.Files))
	for _, f := range e.Files {
		b.WriteString("\n  ")
		b.WriteString(f.Path)
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *BatchError) Is(target error) bool {
	_, ok := target.(*BatchError)
	return ok
}
