package repository

import (
	"context"

	"github.com/sakif/fb-roster/internal/model"
)

// UserRepository is the durable user table.
//
// Implementations must enforce two constraints at the store level:
//   - facebook_id is unique: Create returns apperror.ErrConflict on a duplicate
//   - at most one row has role admin: Create returns apperror.ErrAdminExists
//
// Role is the only field that can change after Create, and only through
// UpdateRole, which never touches an admin row.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]model.User, error)

	// UpdateRole sets role on user id unless that user is currently admin.
	// Returns apperror.ErrNotFound when no row matched, for either reason.
	UpdateRole(ctx context.Context, id int64, role model.Role) (*model.User, error)

	Ping(ctx context.Context) error
}
