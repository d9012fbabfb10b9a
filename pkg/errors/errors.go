// Package errors provides structured error types for Sightline.
//
// Every failure surfaced by the geometry core, the pipeline, the HTTP service
// and the CLI is an *Error carrying a machine-readable Code. Callers branch on
// the code rather than on message text:
//
//	region, err := engine.Region(q)
//	if errors.Is(err, errors.ErrCodePointNotLocated) {
//	    // q is outside the scene, on a vertex, or on a wall
//	}
//
// # Error Codes
//
// Codes follow a loose naming convention:
//   - INVALID_*: input validation failures
//   - *_NOT_FOUND: missing resources
//   - geometry codes (POINT_NOT_LOCATED, DEGENERATE_INPUT, NO_INTERSECTION,
//     TOPOLOGY_INVARIANT) for failures of the visibility computation itself
//   - INTERNAL_*: unexpected internal errors
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidScene    Code = "INVALID_SCENE"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidObserver Code = "INVALID_OBSERVER"

	// Resource not found errors
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"
	ErrCodeSceneNotFound Code = "SCENE_NOT_FOUND"

	// Geometry errors
	ErrCodePointNotLocated   Code = "POINT_NOT_LOCATED"
	ErrCodeDegenerateInput   Code = "DEGENERATE_INPUT"
	ErrCodeNoIntersection    Code = "NO_INTERSECTION"
	ErrCodeTopologyInvariant Code = "TOPOLOGY_INVARIANT"

	// Lifecycle errors
	ErrCodeDetached          Code = "DETACHED"
	ErrCodeStepLimitExceeded Code = "STEP_LIMIT_EXCEEDED"
	ErrCodeTimeout           Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// The outermost *Error decides.
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

// IsGeometry reports whether err is a failure of the visibility computation
// itself, as opposed to bad input files or infrastructure.
func IsGeometry(err error) bool {
	switch GetCode(err) {
	case ErrCodePointNotLocated, ErrCodeDegenerateInput, ErrCodeNoIntersection,
		ErrCodeTopologyInvariant, ErrCodeStepLimitExceeded:
		return true
	}
	return false
}
