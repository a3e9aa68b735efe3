// Package errors provides standardized domain errors with machine-readable codes.
//
// Services return typed errors:
//
//	if size > maxImportSize {
//	    return errors.FileTooLarge("file exceeds 50MB limit")
//	}
//
// Callers check them with errors.Is or switch on the Code:
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Code == errors.CodeFileTooLarge {
//	    ...
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
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// File access codes.
const (
	CodeFileNotFound Code = "FILE_NOT_FOUND"
	CodeFileTooLarge Code = "FILE_TOO_LARGE"
	CodePermission   Code = "PERMISSION_DENIED"
	CodeCopyFailed   Code = "COPY_FAILED"
)

// Format codes.
const (
	CodeUnsupportedFileType Code = "UNSUPPORTED_FILE_TYPE"
	CodeCorruptArchive      Code = "CORRUPT_ARCHIVE"
	CodeMissingContainer    Code = "MISSING_CONTAINER"
	CodeMissingPackageDoc   Code = "MISSING_PACKAGE_DOC"
	CodeInvalidContainer    Code = "INVALID_CONTAINER"
	CodeUnsupportedEncoding Code = "UNSUPPORTED_ENCODING"
)

// Persistence codes.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodePersistence   Code = "PERSISTENCE"
	CodeValidation    Code = "VALIDATION"
)

// Sync and network codes.
const (
	CodeAccountUnavailable Code = "ACCOUNT_UNAVAILABLE"
	CodeSyncInFlight       Code = "SYNC_IN_FLIGHT"
	CodeInvalidRecord      Code = "INVALID_RECORD"
	CodeNetwork            Code = "NETWORK"
	CodeHTTPStatus         Code = "HTTP_STATUS"
	CodeDecode             Code = "DECODE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
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

// Is reports whether target matches this error. Two *Errors match when their
// codes are equal, so sentinels compare by code regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error carrying additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// Wrap returns a copy of the error with cause attached.
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   cause,
	}
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FileNotFound creates a FILE_NOT_FOUND error.
func FileNotFound(message string) *Error { return newError(CodeFileNotFound, message) }

// FileTooLarge creates a FILE_TOO_LARGE error.
func FileTooLarge(message string) *Error { return newError(CodeFileTooLarge, message) }

// CopyFailed creates a COPY_FAILED error wrapping cause.
func CopyFailed(message string, cause error) *Error {
	return newError(CodeCopyFailed, message).Wrap(cause)
}

// UnsupportedFileType creates an UNSUPPORTED_FILE_TYPE error.
func UnsupportedFileType(message string) *Error { return newError(CodeUnsupportedFileType, message) }

// CorruptArchive creates a CORRUPT_ARCHIVE error wrapping cause.
func CorruptArchive(message string, cause error) *Error {
	return newError(CodeCorruptArchive, message).Wrap(cause)
}

// MissingContainer creates a MISSING_CONTAINER error.
func MissingContainer(message string) *Error { return newError(CodeMissingContainer, message) }

// MissingPackageDoc creates a MISSING_PACKAGE_DOC error.
func MissingPackageDoc(message string) *Error { return newError(CodeMissingPackageDoc, message) }

// InvalidContainer creates an INVALID_CONTAINER error.
func InvalidContainer(message string) *Error { return newError(CodeInvalidContainer, message) }

// UnsupportedEncoding creates an UNSUPPORTED_ENCODING error.
func UnsupportedEncoding(message string) *Error { return newError(CodeUnsupportedEncoding, message) }

// NotFound creates a NOT_FOUND error.
func NotFound(message string) *Error { return newError(CodeNotFound, message) }

// AlreadyExists creates an ALREADY_EXISTS error.
func AlreadyExists(message string) *Error { return newError(CodeAlreadyExists, message) }

// Persistence creates a PERSISTENCE error wrapping cause.
func Persistence(message string, cause error) *Error {
	return newError(CodePersistence, message).Wrap(cause)
}

// Validation creates a VALIDATION error.
func Validation(message string) *Error { return newError(CodeValidation, message) }

// ValidationWithDetails creates a VALIDATION error with field details.
func ValidationWithDetails(message string, details any) *Error {
	return newError(CodeValidation, message).WithDetails(details)
}

// AccountUnavailable creates an ACCOUNT_UNAVAILABLE error.
func AccountUnavailable(message string) *Error { return newError(CodeAccountUnavailable, message) }

// SyncInFlight creates a SYNC_IN_FLIGHT error.
func SyncInFlight(message string) *Error { return newError(CodeSyncInFlight, message) }

// InvalidRecord creates an INVALID_RECORD error.
func InvalidRecord(message string) *Error { return newError(CodeInvalidRecord, message) }

// Network creates a NETWORK error wrapping cause.
func Network(message string, cause error) *Error {
	return newError(CodeNetwork, message).Wrap(cause)
}

// HTTPStatus creates an HTTP_STATUS error for a non-2xx response.
func HTTPStatus(message string, status int) *Error {
	return newError(CodeHTTPStatus, message).WithDetails(map[string]int{"status": status})
}

// Decode creates a DECODE error wrapping cause.
func Decode(message string, cause error) *Error {
	return newError(CodeDecode, message).Wrap(cause)
}

// Internal creates an INTERNAL error wrapping cause.
func Internal(message string, cause error) *Error {
	return newError(CodeInternal, message).Wrap(cause)
}
