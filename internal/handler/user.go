package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/auth"
	"github.com/sakif/fb-roster/internal/model"
)

// UserAdmin is what UserHandler needs from the service layer.
// service.UserService implements it.
type UserAdmin interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error)
}

// UserHandler serves the admin panel. Every route is mounted behind
// auth.RequireAdmin, so handlers can assume an admin caller.
type UserHandler struct {
	users  UserAdmin
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserAdmin, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleList returns every user, newest first.
//
// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

// HandleSetRole changes a user's role.
//
// HTTP: PUT /users/{id}/role
// REQUEST BODY: {"role": "convenor"} or {"role": "member"}
//
// RESPONSES:
//   - 200 {User} → role updated
//   - 400        → bad id, bad body, or a role other than convenor/member
//   - 404        → no such user, or the user is the admin
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req setRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.SetRole(r.Context(), id, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if caller, ok := auth.UserFromContext(r.Context()); ok {
		h.logger.Info("role updated by admin",
			slog.Int64("adminID", caller.ID),
			slog.Int64("userID", user.ID),
			slog.String("role", string(user.Role)),
		)
	}

	writeJSON(w, http.StatusOK, user)
}

// userIDParam parses the {id} URL parameter. chi.URLParam returns "" when
// the route has no such parameter, which fails ParseInt like any other junk.
func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "User id must be a positive integer.")
	}
	return id, nil
}
