// Package errors provides structured error types for witlink.
//
// Every fatal condition raised while analyzing descriptors, resolving a
// composition or invoking the composer is an [*Error] carrying a
// machine-readable [Code] and enough context (instance, import, package) to
// point at the offending input. Non-fatal findings are [Warning] values that
// accumulate into the final report instead of aborting the run.
//
// # Error Codes
//
// Codes are grouped by the stage that raises them:
//   - MALFORMED_*: descriptor and script parse failures
//   - DUPLICATE_*, UNKNOWN_*: script/registry mismatches
//   - UNRESOLVED_*, AMBIGUOUS_*, CYCLIC_*, CONFLICTING_*: linker findings
//   - FETCH_FAILURE, COMPOSITION_TOOL_FAILURE: external collaborators
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownInstance, "no component named %q", name)
//	if errors.Is(err, errors.ErrCodeUnknownInstance) {
//	    // Handle script/registry mismatch
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailure, origErr, "fetch %s", pkg)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for fatal conditions.
const (
	// Parse errors
	ErrCodeMalformedDescriptor Code = "MALFORMED_DESCRIPTOR"
	ErrCodeMalformedScript     Code = "MALFORMED_SCRIPT"

	// Closure analysis
	ErrCodeMissingDependency Code = "MISSING_DEPENDENCY"

	// Script/registry mismatches
	ErrCodeDuplicateInstance Code = "DUPLICATE_INSTANCE"
	ErrCodeUnknownInstance   Code = "UNKNOWN_INSTANCE"
	ErrCodeUnknownImport     Code = "UNKNOWN_IMPORT"
	ErrCodeUnknownExport     Code = "UNKNOWN_EXPORT"
	ErrCodeRegistryFrozen    Code = "REGISTRY_FROZEN"

	// Linker findings
	ErrCodeUnresolvedImport    Code = "UNRESOLVED_IMPORT"
	ErrCodeAmbiguousExport     Code = "AMBIGUOUS_EXPORT"
	ErrCodeCyclicInstantiation Code = "CYCLIC_INSTANTIATION"
	ErrCodeConflictingPackage  Code = "CONFLICTING_PACKAGE"

	// External collaborators
	ErrCodeFetchFailure           Code = "FETCH_FAILURE"
	ErrCodeCompositionToolFailure Code = "COMPOSITION_TOOL_FAILURE"

	// Generic
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// Warning codes for non-fatal findings.
const (
	WarnProfileFallback  Code = "PROFILE_FALLBACK"
	WarnOverrideShadowed Code = "OVERRIDE_SHADOWED"
	WarnUnusedPlug       Code = "UNUSED_PLUG"
)

// Error is a structured error with a code, optional location context and
// optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)

	Instance string // Offending instance, if any
	Import   string // Offending import slot, if any
	Package  string // Offending package identity, if any

	// Detail carries raw diagnostics from external tools (composer stderr).
	// It is passed through unmodified.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithInstance sets the offending instance and returns e.
func (e *Error) WithInstance(name string) *Error {
	e.Instance = name
	return e
}

// WithImport sets the offending instance and import slot and returns e.
func (e *Error) WithImport(instance, slot string) *Error {
	e.Instance = instance
	e.Import = slot
	return e
}

// WithPackage sets the offending package identity and returns e.
func (e *Error) WithPackage(pkg string) *Error {
	e.Package = pkg
	return e
}

// WithDetail attaches raw diagnostic output and returns e.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Annotate prefixes the message of err with context while keeping its
// code. Errors that are not *Error are wrapped with ErrCodeInternal.
func Annotate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	var e *Error
	if errors.As(err, &e) {
		c := *e
		c.Message = prefix + ": " + e.Message
		return &c
	}
	return Wrap(ErrCodeInternal, err, "%s", prefix)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Warning is a non-fatal finding. Warnings never stop processing; they are
// collected into the composition graph and the emitted manifest.
type Warning struct {
	Code     Code   `json:"code"`
	Message  string `json:"message"`
	Instance string `json:"instance,omitempty"`
}

// NewWarning creates a Warning for the given instance.
func NewWarning(code Code, instance, format string, args ...any) Warning {
	return Warning{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Instance: instance,
	}
}

// String formats the warning as "CODE: message".
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
