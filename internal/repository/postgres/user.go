package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
	"github.com/sakif/fb-roster/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, facebook_id, name, email, picture, role, created_at`

// uniqueViolationCode is the SQLSTATE Postgres reports for a UNIQUE failure.
const uniqueViolationCode = "23505"

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.FacebookID,
		&u.Name,
		&u.Email,
		&u.Picture,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user; the database assigns id and created_at.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleMember
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (facebook_id, name, email, picture, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		user.FacebookID,
		user.Name,
		user.Email,
		user.Picture,
		string(user.Role),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			switch pgErr.ConstraintName {
			case constraintSingleAdmin:
				return fmt.Errorf("postgres: inserting user (facebookID=%s): %w", user.FacebookID, apperror.ErrAdminExists)
			case constraintFacebookID:
				return apperror.Conflict("user", user.FacebookID)
			}
		}
		return fmt.Errorf("postgres: inserting user (facebookID=%s): %w", user.FacebookID, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetByFacebookID retrieves a user by the ID Facebook issued for them.
func (db *DB) GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE facebook_id = $1`, facebookID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", facebookID)
		}
		return nil, fmt.Errorf("postgres: getting user by facebook_id %s: %w", facebookID, err)
	}
	return u, nil
}

func (db *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting users: %w", err)
	}
	return n, nil
}

// List returns every user, newest first. There is no pagination; the admin
// panel shows the whole roster.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}

	return users, nil
}

// UpdateRole changes the role of a non-admin user in a single statement.
// An admin row never matches the WHERE clause, so it comes back as not found.
func (db *DB) UpdateRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`UPDATE users SET role = $1
		 WHERE id = $2 AND role <> 'admin'
		 RETURNING `+userColumns,
		string(role), id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundOrProtected(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: updating role for user %d: %w", id, err)
	}
	return u, nil
}
