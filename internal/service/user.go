// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take a repository.UserRepository interface, never a concrete
// store, so tests run against an in-memory fake and production picks
// Postgres or SQLite in server.New.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
	"github.com/sakif/fb-roster/internal/repository"
)

// UserService owns the two rules of this application: who becomes admin,
// and who may have their role changed.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// Reconcile maps a verified external identity to a local user, creating the
// user on first login. created reports which path was taken.
//
// RULES:
//  1. An existing user is returned unchanged. Name, email and picture are
//     frozen at signup; a later login does not refresh them.
//  2. A new user becomes admin if the table is empty, member otherwise.
//
// RACES:
// Count-then-insert is not atomic. Two first signups can both see zero rows
// and both try to insert an admin. The store's single-admin index rejects
// the loser with ErrAdminExists, and we retry that insert once as member.
//
// Two logins for the SAME new identity can also race: both miss the lookup,
// one insert wins, the other hits the facebook_id unique constraint and gets
// ErrConflict. That is returned as-is; AuthService retries it as a lookup.
func (s *UserService) Reconcile(ctx context.Context, identity *model.Identity) (user *model.User, created bool, err error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, false, apperror.ValidationFailed("external_id", "identity must have an external id")
	}

	existing, err := s.repo.GetByFacebookID(ctx, identity.ExternalID)
	if err == nil {
		s.logger.Info("user logged in",
			slog.Int64("userID", existing.ID),
			slog.String("facebookID", existing.FacebookID),
		)
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/user: looking up facebook user %s: %w", identity.ExternalID, err)
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("service/user: counting users: %w", err)
	}

	role := model.RoleMember
	if count == 0 {
		role = model.RoleAdmin
	}

	user = &model.User{
		FacebookID: identity.ExternalID,
		Name:       identity.Name,
		Email:      identity.Email,
		Picture:    identity.Picture,
		Role:       role,
	}

	err = s.repo.Create(ctx, user)
	if errors.Is(err, apperror.ErrAdminExists) {
		s.logger.Warn("lost first-user race, signing up as member",
			slog.String("facebookID", identity.ExternalID),
		)
		user.Role = model.RoleMember
		err = s.repo.Create(ctx, user)
	}
	if err != nil {
		return nil, false, fmt.Errorf("service/user: creating facebook user %s: %w", identity.ExternalID, err)
	}

	s.logger.Info("user signed up",
		slog.Int64("userID", user.ID),
		slog.String("facebookID", user.FacebookID),
		slog.String("role", string(user.Role)),
	)

	return user, true, nil
}

// SetRole changes a user's role to convenor or member.
//
// Admin is not an accepted value, and an admin target is never matched by
// the store's conditional update. Both "no such user" and "user is admin"
// come back as apperror.ErrNotFound; callers that need to tell them apart
// must call Get first.
func (s *UserService) SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	if !role.Assignable() {
		return nil, apperror.ValidationFailed("role", "Invalid role specified. Can only be 'convenor' or 'member'.")
	}

	user, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("service/user: setting role of user %d: %w", id, err)
	}

	s.logger.Info("user role changed",
		slog.Int64("userID", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, nil
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

// Get returns one user by internal ID.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %d: %w", id, err)
	}
	return user, nil
}

// FindByFacebookID returns the user linked to a Facebook account, if any.
func (s *UserService) FindByFacebookID(ctx context.Context, facebookID string) (*model.User, error) {
	user, err := s.repo.GetByFacebookID(ctx, facebookID)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching facebook user %s: %w", facebookID, err)
	}
	return user, nil
}
