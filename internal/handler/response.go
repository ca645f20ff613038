// Package handler holds the HTTP handlers: the public raw endpoint, the
// admin JSON API, and the login endpoints.
package handler

// RESPONSE HELPERS:
// Every JSON handler answers through writeJSON or writeError, so all error
// bodies share one shape:
//
//	{"error": "slug \"demo\" already exists", "code": "slug_conflict", "field": "slug"}
//
// "error" is for humans, "code" is for programs, "field" names the offending
// input when there is one.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anuragaming1/anura-kun/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// maxJSONBody caps request bodies. Two content bodies at the service limit
// plus JSON escaping fit comfortably.
const maxJSONBody = 10 << 20

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and machine code.
//
// A slug conflict answers 400, not 409: to the creator it is just another
// reason the form input was rejected.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "slug_conflict"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to an HTTP response.
//
// Anything that is not an *apperror.AppError, or is ErrInternal, gets the
// generic message. Raw errors can carry SQL, file paths or other details
// that must not leave the server, so they go to logger instead.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := errorStatus(err)

	resp := ErrorResponse{Error: "an internal error occurred", Code: code}

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Field = appErr.Field
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads a size-limited JSON body into dst. A malformed body is a
// validation error so it maps to 400 like any other bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("", "request body too large")
		}
		return apperror.ValidationFailed("", "invalid JSON body")
	}
	return nil
}
