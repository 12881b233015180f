// Package errors provides unified error handling with structured error codes.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for handling policy decisions.
type Code int

const (
	CodeUnknown Code = iota

	// CodeTransient: device or connection hiccup; degrade, never fatal.
	CodeTransient

	// CodeConfig: malformed or missing configuration; recover with defaults.
	CodeConfig

	// CodeRemote: the peer rejected or could not execute a request;
	// reported per-call, the pipeline continues.
	CodeRemote

	// CodeExhausted: capped buffers, dropped data.
	CodeExhausted

	// CodeFatalStartup: no audio device or no peer after exhausting attempts.
	CodeFatalStartup
)

func (c Code) String() string {
	switch c {
	case CodeTransient:
		return "transient"
	case CodeConfig:
		return "config"
	case CodeRemote:
		return "remote"
	case CodeExhausted:
		return "exhausted"
	case CodeFatalStartup:
		return "fatal_startup"
	default:
		return "unknown"
	}
}

// AppError is the base error type with a code and optional metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode reports whether err or anything it wraps is an AppError with the
// given code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether an error is worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == CodeTransient
}
