// GO TESTING BASICS:
// 1. Test files MUST end in _test.go so Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Instead of writing a separate test function per constructor, we define a
// slice of cases and loop over them. Adding a case means adding one struct.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("snippet", "demo"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("slug", "slug is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "SlugConflict wraps ErrConflict",
			err:       SlugConflict("demo"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("login required"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("invalid secret key"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Internal wraps ErrInternal",
			err:       Internal(errors.New("disk full")),
			target:    ErrInternal,
			wantMatch: true,
		},
		{
			name:      "Internal does NOT expose its cause to errors.Is",
			err:       Internal(context.DeadlineExceeded),
			target:    context.DeadlineExceeded,
			wantMatch: false,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("creating snippet: %w", SlugConflict("demo")),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("snippet", "demo"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound names the resource and id",
			err:         NotFound("snippet", "demo"),
			wantMessage: `snippet "demo" not found`,
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("content_fake", "content_fake is required"),
			wantMessage: "content_fake is required",
		},
		{
			name:        "SlugConflict names the slug",
			err:         SlugConflict("demo"),
			wantMessage: `slug "demo" already exists`,
		},
		{
			name:        "Internal stays generic",
			err:         Internal(errors.New("sqlite: database is locked")),
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("snippet", "demo")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestFields(t *testing.T) {
	if err := ValidationFailed("slug", "bad slug"); err.Field != "slug" {
		t.Errorf("Field = %q, want %q", err.Field, "slug")
	}
	if err := SlugConflict("demo"); err.Field != "slug" {
		t.Errorf("SlugConflict Field = %q, want %q", err.Field, "slug")
	}

	cause := errors.New("boom")
	if err := Internal(cause); err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}
