package model

import "time"

// APIToken is a long-lived bearer credential for a service account. The raw
// secret is never stored; only a SHA-256 hash is persisted. Revocation is
// one-way and revoked rows are kept for audit. Expiry is derived from
// ExpiresAt at validation time, never stored as a state transition.
type APIToken struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	TokenHash string     `json:"-" db:"token_hash"` // SHA-256 hex, never expose
	OwnerID   string     `json:"owner_id" db:"user_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Revoked   bool       `json:"revoked" db:"revoked"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}

// Expired reports whether the token's expiry, if any, has passed at the
// given instant.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}
