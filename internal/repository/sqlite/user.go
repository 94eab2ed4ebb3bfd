package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
	"github.com/sakif/fb-roster/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, facebook_id, name, email, picture, role, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
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

// Create inserts a new user and fills in ID and CreatedAt.
//
// The two UNIQUE indexes on users are reported separately so the service can
// react to each: a duplicate facebook_id is a conflict (someone else just
// signed up with the same account), a duplicate admin means the user lost the
// race to be first.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (facebook_id, name, email, picture, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.FacebookID,
		user.Name,
		user.Email,
		user.Picture,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		if violated, ok := uniqueViolation(err); ok {
			switch violated {
			case "users.role":
				return fmt.Errorf("sqlite: inserting user (facebookID=%s): %w", user.FacebookID, apperror.ErrAdminExists)
			case "users.facebook_id":
				return apperror.Conflict("user", user.FacebookID)
			}
		}
		return fmt.Errorf("sqlite: inserting user (facebookID=%s): %w", user.FacebookID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetByFacebookID retrieves a user by the ID Facebook issued for them.
// Returns apperror.ErrNotFound if nobody has logged in with that account yet.
func (db *DB) GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE facebook_id = ?`, facebookID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", facebookID)
		}
		return nil, fmt.Errorf("sqlite: getting user by facebook_id %s: %w", facebookID, err)
	}
	return u, nil
}

// Count returns the number of rows in users.
func (db *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// List returns every user, newest first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// UpdateRole changes the role of a non-admin user.
//
// The "role <> 'admin'" guard lives in the WHERE clause, so an admin row is
// simply never matched. Nothing above this layer can demote an admin, no
// matter what it passes in.
//
// The update and the read-back share a transaction so the returned row is
// the one this call wrote.
func (db *DB) UpdateRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning role update for user %d: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND role <> 'admin'`,
		role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating role for user %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading rows affected for user %d: %w", id, err)
	}
	if n == 0 {
		return nil, apperror.NotFoundOrProtected(strconv.FormatInt(id, 10))
	}

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back user %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing role update for user %d: %w", id, err)
	}
	return u, nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which column it was on ("users.facebook_id", "users.role").
//
// SQLite error text looks like:
//
//	constraint failed: UNIQUE constraint failed: users.facebook_id (2067)
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}

	msg := sqliteErr.Error()
	for _, col := range []string{"users.facebook_id", "users.role"} {
		if strings.Contains(msg, col) {
			return col, true
		}
	}
	return "", true
}
