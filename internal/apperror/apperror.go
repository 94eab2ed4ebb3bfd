package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the caller did not present a usable credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken means the identity provider rejected the access token.
	// The user can fix it by logging in again.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUpstreamUnavailable means the identity provider could not be reached
	// or answered with something we could not interpret. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAdminExists is returned by the store when an insert would create a
	// second admin. It never reaches HTTP: the reconciler retries as member.
	ErrAdminExists = errors.New("admin already exists")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
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
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundOrProtected is returned by a role update that matched no row.
// The target either does not exist or is an admin; the store cannot tell
// which, and neither can we.
func NotFoundOrProtected(id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("user %s not found or is an admin who cannot be demoted", id),
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

// Unauthorized returns an AppError for a missing or unusable credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidToken wraps a provider rejection. The cause is kept for server-side
// logs; Message is what the client sees.
func InvalidToken(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrInvalidToken, cause),
		Message: "Invalid or expired Facebook access token.",
	}
}

// UpstreamUnavailable wraps a transport-level failure talking to the provider.
func UpstreamUnavailable(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstreamUnavailable, cause),
		Message: "Identity provider is unavailable, please try again.",
	}
}
