// Package apperror defines the error taxonomy shared by the store, the
// services and the HTTP layer.
//
// Every failure a caller can observe is one of the sentinels below, wrapped
// in an *AppError that carries a human-readable message. The HTTP handlers
// translate the sentinel into a status code with errors.Is, so neither the
// services nor the repositories ever need to know about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel, one of the Err* values above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, logged but never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// SlugConflict reports that another snippet already owns the normalized slug.
func SlugConflict(slug string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("slug %q already exists", slug),
		Field:   "slug",
	}
}

// Unauthorized returns an AppError for a missing or invalid session.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
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

// Internal wraps a storage or I/O failure. The message stays generic so
// nothing about the backend leaks to untrusted callers; the cause is kept
// for logging.
func Internal(cause error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: "an internal error occurred",
		Cause:   cause,
	}
}
