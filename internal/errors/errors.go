// Package errors provides standardized domain errors with codes for the
// offline and sync engine.
//
// Usage:
//
//	// In services - return typed errors
//	if !signal.IsOnline() {
//	    return errors.NoConnectivity("no network connection available")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrRemoteUnavailable) {
//	    // surface to the login flow, retry on next user action
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the engine.
const (
	// CodeNoConnectivity means a download was attempted while offline.
	CodeNoConnectivity Code = "NO_CONNECTIVITY"
	// CodeQuotaExceeded means a download would exceed the storage budget.
	// The budget check is advisory; actual write failures are a distinct code.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	// CodeFetchFailed means text or audio retrieval from the network failed.
	CodeFetchFailed Code = "FETCH_FAILED"
	// CodeStorageWriteFailed means the byte store rejected a payload write.
	CodeStorageWriteFailed Code = "STORAGE_WRITE_FAILED"
	// CodeRemoteUnavailable means the remote store was unreachable during push/pull.
	CodeRemoteUnavailable Code = "REMOTE_UNAVAILABLE"
	// CodeMalformedRemoteData means the remote document exists but is not a
	// parseable progress map. Callers treat this as "no remote data".
	CodeMalformedRemoteData Code = "MALFORMED_REMOTE_DATA"
	// CodeNotFound means a requested local record does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeValidation means a request failed input validation.
	CodeValidation Code = "VALIDATION"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNoConnectivity      = &Error{Code: CodeNoConnectivity, Message: "no network connection"}
	ErrQuotaExceeded       = &Error{Code: CodeQuotaExceeded, Message: "storage budget exceeded"}
	ErrFetchFailed         = &Error{Code: CodeFetchFailed, Message: "fetch failed"}
	ErrStorageWriteFailed  = &Error{Code: CodeStorageWriteFailed, Message: "storage write failed"}
	ErrRemoteUnavailable   = &Error{Code: CodeRemoteUnavailable, Message: "remote store unavailable"}
	ErrMalformedRemoteData = &Error{Code: CodeMalformedRemoteData, Message: "malformed remote data"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NoConnectivity creates a no-connectivity error.
func NoConnectivity(msg string) *Error {
	return &Error{Code: CodeNoConnectivity, Message: msg}
}

// QuotaExceeded creates a quota-exceeded error.
func QuotaExceeded(msg string) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: msg}
}

// QuotaExceededf creates a quota-exceeded error with formatted message.
func QuotaExceededf(format string, args ...any) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: fmt.Sprintf(format, args...)}
}

// FetchFailed creates a fetch-failed error.
func FetchFailed(msg string) *Error {
	return &Error{Code: CodeFetchFailed, Message: msg}
}

// FetchFailedf creates a fetch-failed error with formatted message.
func FetchFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeFetchFailed, Message: fmt.Sprintf(format, args...)}
}

// StorageWriteFailed creates a storage-write-failed error.
func StorageWriteFailed(msg string) *Error {
	return &Error{Code: CodeStorageWriteFailed, Message: msg}
}

// RemoteUnavailable creates a remote-unavailable error.
func RemoteUnavailable(msg string) *Error {
	return &Error{Code: CodeRemoteUnavailable, Message: msg}
}

// RemoteUnavailablef creates a remote-unavailable error with formatted message.
func RemoteUnavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeRemoteUnavailable, Message: fmt.Sprintf(format, args...)}
}

// MalformedRemoteData creates a malformed-remote-data error.
func MalformedRemoteData(msg string) *Error {
	return &Error{Code: CodeMalformedRemoteData, Message: msg}
}

// NotFound creates a not-found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not-found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
