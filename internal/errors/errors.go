package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a dtbar error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrBackend         ErrorCode = "BACKEND_ERROR"    // 502
	ErrFetch           ErrorCode = "FETCH_ERROR"      // 502
	ErrCacheCorruption ErrorCode = "CACHE_CORRUPTION" // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// DTError represents a structured error with code, status, and details.
type DTError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *DTError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DTError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DTError {
	return &DTError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown record or cache entry.
func NewNotFound(identifier string) *DTError {
	return &DTError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewBackend creates a 502 error for a failed or malformed backend exchange.
// Backend errors are fatal to the current call and never retried here.
func NewBackend(op string, err error) *DTError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &DTError{
		Code:    ErrBackend,
		Status:  502,
		Message: msg,
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewFetch creates a 502 error for a content fetch of a single record.
func NewFetch(uuid string, err error) *DTError {
	msg := fmt.Sprintf("fetch %s failed", uuid)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &DTError{
		Code:    ErrFetch,
		Status:  502,
		Message: msg,
		Details: map[string]any{"uuid": uuid},
		Err:     err,
	}
}

// NewCacheCorruption creates a 500 error for an inconsistent cache entry.
func NewCacheCorruption(key, reason string) *DTError {
	return &DTError{
		Code:    ErrCacheCorruption,
		Status:  500,
		Message: fmt.Sprintf("cache entry %q is corrupt: %s", key, reason),
		Details: map[string]any{"key": key, "reason": reason},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DTError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DTError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err, or any error it wraps, is a DTError with the given code.
func Is(err error, code ErrorCode) bool {
	var dtErr *DTError
	if stderrors.As(err, &dtErr) {
		return dtErr.Code == code
	}
	return false
}

// As returns the DTError in err's chain, if any.
func As(err error) (*DTError, bool) {
	var dtErr *DTError
	if stderrors.As(err, &dtErr) {
		return dtErr, true
	}
	return nil, false
}
