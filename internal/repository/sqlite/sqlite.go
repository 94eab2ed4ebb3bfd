// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// Production runs on Postgres (see repository/postgres). SQLite is the
// embedded option for local development (DB_DRIVER=sqlite) and for tests,
// where ":memory:" gives every test a fresh database with no server to run.
// The schema mirrors the Postgres one, including the uniqueness rules the
// reconciler depends on.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so the
// binary builds without a C compiler.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/roster.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate, empty
	// database. One connection keeps the pool pointing at a single file or
	// memory image, and serializes writers the way SQLite wants anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is still reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the users table and its indexes.
//
// CREATE ... IF NOT EXISTS makes every statement safe to re-run on startup.
//
// users_single_admin is a partial unique index: it only covers rows where
// role = 'admin', so it allows any number of members and convenors but at
// most one admin. This is what makes the first-user-is-admin rule hold even
// when two first signups race each other.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			facebook_id TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			email       TEXT,
			picture     TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL DEFAULT 'member'
			            CHECK (role IN ('admin', 'convenor', 'member')),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS users_single_admin
		ON users(role) WHERE role = 'admin';
	`)
	if err != nil {
		return fmt.Errorf("creating single admin index: %w", err)
	}

	return nil
}
