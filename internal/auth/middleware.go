package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to an existing local user.
// service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// RequireUser is a middleware that enforces authentication on protected routes.
//
// It reads the Facebook access token from "Authorization: Bearer <token>",
// resolves it to a local user, and stores that user in the request context.
// A token that Facebook rejects, or that belongs to someone who never signed
// up, gets 401. An unreachable Graph API gets 503 so the client knows to
// retry rather than log the user out.
func RequireUser(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := authenticate(w, r, authn, logger)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is RequireUser plus a role check: only the admin gets through.
// Everyone else who authenticated gets 403.
func RequireAdmin(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := authenticate(w, r, authn, logger)
			if !ok {
				return
			}
			if user.Role != model.RoleAdmin {
				logger.Warn("admin route denied",
					slog.Int64("userID", user.ID),
					slog.String("role", string(user.Role)),
					slog.String("path", r.URL.Path),
				)
				writeAuthError(w, http.StatusForbidden, "forbidden", "Admin access required.")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user RequireUser or RequireAdmin stored.
// Returns (nil, false) on routes without either middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func authenticate(w http.ResponseWriter, r *http.Request, authn Authenticator, logger *slog.Logger) (*model.User, bool) {
	token, ok := BearerToken(r)
	if !ok {
		writeAuthError(w, http.StatusUnauthorized, "unauthorized", "A Facebook access token is required.")
		return nil, false
	}

	user, err := authn.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrUpstreamUnavailable):
			writeAuthError(w, http.StatusServiceUnavailable, "upstream_unavailable", "Identity provider is unavailable, please try again.")
		case errors.Is(err, apperror.ErrInvalidToken),
			errors.Is(err, apperror.ErrUnauthorized),
			errors.Is(err, apperror.ErrValidation):
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Valid authentication required.")
		default:
			logger.Error("authenticating request",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		}
		return nil, false
	}

	return user, true
}

// writeAuthError writes the same {"error","message"} body the handler
// package uses, so clients parse one error shape for every route.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	})
}
