// Package domain defines the core domain models for wasmsnap.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a snapshot error with a structured error code.
//
// Codes follow the format WSN-<AREA>-<NNNN>. Callers match on the code via
// errors.Is against the predefined values below, so a wrapped copy carrying
// details or a cause still compares equal to its sentinel.
type DomainError struct {
	Code    string // Error code (e.g., "WSN-FMT-4221")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with a format string.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Snapshot Errors
// ============================================================================

var (
	// ErrIOFailure indicates an artifact could not be opened, read or written.
	// The snapshot attempt is aborted; nothing already written is cleaned up.
	ErrIOFailure = NewDomainError("WSN-IO-5001", "snapshot i/o failure")

	// ErrSnapshotNotFound indicates a requested artifact does not exist.
	ErrSnapshotNotFound = NewDomainError("WSN-IO-4041", "snapshot artifact not found")

	// ErrFormatCorruption indicates a decoded length, offset or pointer is
	// inconsistent with the stream or with the module it is applied to.
	ErrFormatCorruption = NewDomainError("WSN-FMT-4221", "snapshot format corruption")

	// ErrModuleMismatch indicates the module at load time is not structurally
	// identical to the module at save time.
	ErrModuleMismatch = NewDomainError("WSN-MOD-4091", "module does not match snapshot")

	// ErrInvalidMode indicates an operation that the current session mode
	// does not allow (save while reading, load while writing, no session).
	ErrInvalidMode = NewDomainError("WSN-STATE-4001", "operation not valid in current mode")

	// ErrSessionOpen indicates open was called while a session is active.
	ErrSessionOpen = NewDomainError("WSN-STATE-4002", "snapshot session already open")

	// ErrInvalidConfig indicates the snapshot configuration is unusable.
	ErrInvalidConfig = NewDomainError("WSN-CFG-1001", "invalid snapshot configuration")
)
