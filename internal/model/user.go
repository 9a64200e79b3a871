package model

import "time"

// Role classifies a user for authorization decisions. Humans are USER or
// ADMIN and authenticate through the OAuth/session flow; SERVICE_ACCOUNT is
// reserved for non-interactive clients that authenticate with API tokens.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleUser           Role = "user"
	RoleServiceAccount Role = "service_account"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleServiceAccount:
		return true
	}
	return false
}

// User is an authenticated identity (a principal). The user lifecycle is
// owned by the identity-management side; the auth core only reads the role
// and active flag. Service accounts have no password or OAuth identity.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsServiceAccount reports whether the user may own API tokens.
func (u *User) IsServiceAccount() bool {
	return u.Role == RoleServiceAccount
}
