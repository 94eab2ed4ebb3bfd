package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/fb-roster/internal/auth"
	"github.com/sakif/fb-roster/internal/model"
)

// LoginService is what AuthHandler needs from the service layer.
// service.AuthService implements it.
type LoginService interface {
	LoginWithFacebook(ctx context.Context, accessToken string) (*model.User, bool, error)
}

// AuthHandler manages Facebook login and the current-user endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleFacebookLogin → exchange a Facebook access token for a local user
//   - HandleMe            → return the user behind the bearer token
//
// There is no session: the SPA keeps the Facebook access token and sends it
// as a bearer token on every protected request.
type AuthHandler struct {
	login  LoginService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(login LoginService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		login:  login,
		logger: logger,
	}
}

type facebookLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

// HandleFacebookLogin logs a user in with a Facebook access token, creating
// the account on first login.
//
// HTTP: POST /auth/facebook
// REQUEST BODY: {"accessToken": "EAAB..."}
//
// RESPONSES:
//   - 201 {User} → first login, account created (the very first one is admin)
//   - 200 {User} → returning user
//   - 400        → missing token, or Facebook rejected it
//   - 503        → Facebook unreachable, retry later
func (h *AuthHandler) HandleFacebookLogin(w http.ResponseWriter, r *http.Request) {
	var req facebookLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if strings.TrimSpace(req.AccessToken) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Access token is required.",
		})
		return
	}

	user, created, err := h.login.LoginWithFacebook(r.Context(), req.AccessToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, user)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /me
// Auth: Required (auth.RequireUser puts the user in context)
//
// The SPA calls this on load to revalidate the user it cached locally; a 401
// tells it to clear the cache and show the login button.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Only reachable if the route was registered without RequireUser.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Valid authentication required.",
		})
		return
	}

	writeJSON(w, http.StatusOK, user)
}
