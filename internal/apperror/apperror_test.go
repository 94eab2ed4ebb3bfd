package apperror

import (
	"errors"
	"testing"
)

var errOAuth = errors.New("OAuthException: session has expired")

func TestErrorsIs(t *testing.T) {
	// Each test case checks that errors.Is() correctly identifies the error type
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("role", "role is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "42"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "42"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("role", "invalid role"),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "NotFoundOrProtected wraps ErrNotFound",
			err:       NotFoundOrProtected("7"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "InvalidToken wraps ErrInvalidToken",
			err:       InvalidToken(errors.New("OAuthException")),
			target:    ErrInvalidToken,
			wantMatch: true,
		},
		{
			name:      "InvalidToken keeps its cause",
			err:       InvalidToken(errOAuth),
			target:    errOAuth,
			wantMatch: true,
		},
		{
			name:      "UpstreamUnavailable wraps ErrUpstreamUnavailable",
			err:       UpstreamUnavailable(errors.New("dial tcp: i/o timeout")),
			target:    ErrUpstreamUnavailable,
			wantMatch: true,
		},
		{
			name:      "UpstreamUnavailable does NOT match ErrInvalidToken",
			err:       UpstreamUnavailable(errors.New("connection refused")),
			target:    ErrInvalidToken,
			wantMatch: false,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("bearer token required"),
			target:    ErrUnauthorized,
			wantMatch: true,
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
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "42"),
			wantMessage: "user not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("role", "role must be convenor or member"),
			wantMessage: "role must be convenor or member",
		},
		{
			name:        "NotFoundOrProtected explains both causes",
			err:         NotFoundOrProtected("7"),
			wantMessage: "user 7 not found or is an admin who cannot be demoted",
		},
		{
			name:        "InvalidToken hides the provider detail",
			err:         InvalidToken(errOAuth),
			wantMessage: "Invalid or expired Facebook access token.",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("user", "42"),
			wantMessage: "user conflict with id 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// .Error() should return the human-readable message
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "42")
	unwrapped := err.Unwrap()

	if unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("role", "invalid role")

	if err.Field != "role" {
		t.Errorf("Field = %q, want %q", err.Field, "role")
	}
}

func TestInvalidTokenUnwrapKeepsCause(t *testing.T) {
	err := InvalidToken(errOAuth)

	if !errors.Is(err.Unwrap(), ErrInvalidToken) {
		t.Errorf("Unwrap() = %v, want chain containing %v", err.Unwrap(), ErrInvalidToken)
	}
	if !errors.Is(err.Unwrap(), errOAuth) {
		t.Errorf("Unwrap() = %v, want chain containing %v", err.Unwrap(), errOAuth)
	}
}
