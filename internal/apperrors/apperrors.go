// Package apperrors defines the failure kinds surfaced to API callers.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation indicates malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the write collides with an existing record.
	ErrConflict = errors.New("conflict")
	// ErrAuth indicates missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient indicates a store or network failure the caller may retry.
	ErrTransient = errors.New("temporarily unavailable")
)

// Error pairs a failure kind with a message safe to show to users.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

func Auth(msg string) error { return &Error{Kind: ErrAuth, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Transient wraps a store or network failure.
func Transient(msg string, err error) error {
	return &Error{Kind: ErrTransient, Message: msg, Err: err}
}

// Message returns the user-facing message carried by err, or fallback.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// HTTPStatus maps an error to the status code used by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
