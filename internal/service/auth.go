package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
)

// TokenValidator turns an opaque provider access token into a verified
// identity. auth.FacebookValidator is the production implementation.
type TokenValidator interface {
	Validate(ctx context.Context, accessToken string) (*model.Identity, error)
}

// AuthService ties token validation to user reconciliation.
//
//	AuthHandler (HTTP) → AuthService → TokenValidator (Graph API)
//	                                 ↘ UserService (reconcile)
type AuthService struct {
	validator TokenValidator
	users     *UserService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(validator TokenValidator, users *UserService, logger *slog.Logger) *AuthService {
	return &AuthService{
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// LoginWithFacebook validates accessToken and returns the matching local
// user, creating one on first login. created is true for a new signup.
//
// A token the validator rejects never reaches the reconciler, so a bad token
// cannot create or even look up a row.
//
// If reconciliation reports ErrConflict, a concurrent request for the same
// Facebook account created the row between our lookup and insert. We retry
// once as a plain lookup and return that row.
func (s *AuthService) LoginWithFacebook(ctx context.Context, accessToken string) (user *model.User, created bool, err error) {
	identity, err := s.validator.Validate(ctx, accessToken)
	if err != nil {
		return nil, false, fmt.Errorf("service/auth: validating facebook token: %w", err)
	}

	user, created, err = s.users.Reconcile(ctx, identity)
	if errors.Is(err, apperror.ErrConflict) {
		s.logger.Info("concurrent signup detected, retrying as lookup",
			slog.String("facebookID", identity.ExternalID),
		)
		user, err = s.users.FindByFacebookID(ctx, identity.ExternalID)
		created = false
	}
	if err != nil {
		return nil, false, fmt.Errorf("service/auth: reconciling facebook user %s: %w", identity.ExternalID, err)
	}

	return user, created, nil
}

// Authenticate resolves a bearer token to an existing user without creating
// one. It implements auth.Authenticator for the route middleware.
//
// A valid Facebook token for someone who never went through
// /auth/facebook is rejected with ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	identity, err := s.validator.Validate(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("service/auth: validating facebook token: %w", err)
	}

	user, err := s.users.FindByFacebookID(ctx, identity.ExternalID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("No account is linked to this Facebook login.")
		}
		return nil, fmt.Errorf("service/auth: authenticating facebook user %s: %w", identity.ExternalID, err)
	}

	return user, nil
}
