// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the access level of a user.
//
// Only three values exist. "admin" is granted exactly once, to the first
// account ever created, and can never be changed afterwards.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleConvenor Role = "convenor"
	RoleMember   Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleConvenor, RoleMember:
		return true
	}
	return false
}

// Assignable reports whether r may be set through the role administrator.
// Admin is never assignable: the only path to admin is first signup.
func (r Role) Assignable() bool {
	return r == RoleConvenor || r == RoleMember
}

// User represents a registered account.
//
// WHY ID int64 AND FacebookID string?
// The internal ID is a database serial, used for every internal reference and
// in URLs (/users/{id}/role). The Facebook ID is the natural key we reconcile
// on at login; Facebook issues it as a numeric string, and we keep it a string
// so we never do arithmetic on someone else's identifier.
//
// Email is a pointer because Facebook omits it when the user signed up with a
// phone number or denied the email permission. nil is serialized as an absent
// field, not "".
type User struct {
	ID         int64     `json:"id"          db:"id"`
	FacebookID string    `json:"facebook_id" db:"facebook_id"`
	Name       string    `json:"name"        db:"name"`
	Email      *string   `json:"email,omitempty" db:"email"`
	Picture    string    `json:"picture"     db:"picture"` // provider-hosted, may expire
	Role       Role      `json:"role"        db:"role"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// Identity is a verified external identity returned by the token validator.
// It carries facts from the provider only; role decisions happen later.
type Identity struct {
	ExternalID string
	Name       string
	Email      *string
	Picture    string
}
