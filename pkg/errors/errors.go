// Package errors provides structured error types for the sheetshot application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map to conversion pipeline stages and request validation:
//   - LOAD_ERROR / RANGE_ERROR: bad source data or an invalid cell range
//   - CONFIG_ERROR: invalid output format, quality, or dimension request
//   - RENDER_ERROR / RASTER_ERROR: external-stage failures
//   - CONCURRENCY_TIMEOUT / CANCELLED: admission control outcomes
//   - *_NOT_FOUND: resource lookups
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "invalid quality: %d", q)
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLoad, origErr, "failed to open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Source data errors
	ErrCodeLoad  Code = "LOAD_ERROR"
	ErrCodeRange Code = "RANGE_ERROR"

	// Request validation errors
	ErrCodeConfig Code = "CONFIG_ERROR"

	// External stage errors
	ErrCodeRender Code = "RENDER_ERROR"
	ErrCodeRaster Code = "RASTER_ERROR"

	// Concurrency and admission errors
	ErrCodeConcurrencyTimeout Code = "CONCURRENCY_TIMEOUT"
	ErrCodeCancelled          Code = "CANCELLED"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeTaskNotFound Code = "TASK_NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

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

// RetryExhaustedError reports that a retried stage gave up after the
// configured attempt bound. The last attempt's error is preserved.
type RetryExhaustedError struct {
	Attempts int // Number of attempts made
	Last     error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("giving up after %d attempts", e.Attempts)
}

// Unwrap returns the last attempt's error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}
