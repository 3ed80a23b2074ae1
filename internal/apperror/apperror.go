// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; handlers translate them to HTTP status codes.
// Each constructor wraps one sentinel so callers can branch with errors.Is
// without caring about the human-readable message.
//
// SENTINELS VS TYPES:
// A sentinel (ErrNotFound) answers "what kind of failure is this?" and is
// matched with errors.Is. The *AppError type carries the details a client
// sees (message, field) and is pulled out with errors.As:
//
//	var appErr *AppError
//	if errors.As(err, &appErr) {
//	    // appErr.Message, appErr.Field
//	}
//
// Both work through any number of fmt.Errorf("...: %w", err) layers.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // sentinel, one of the Err* values above
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Cause   error  // optional: the lower-level error that triggered this one
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
//
// MULTI-ERROR UNWRAP:
// Since Go 1.20 Unwrap may return []error; errors.Is walks every branch.
// A share upload that collided therefore matches both ErrConflict (how the
// handler answers) and backend.ErrObjectExists (what actually happened).
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when the backend rejects the caller's credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure of the remote data backend. The message is safe
// to show to the user; the cause is kept for logs.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}
