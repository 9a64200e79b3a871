package auth

import "errors"

// Issuance-time validation errors, surfaced to callers as 400s.
var (
	ErrInvalidName   = errors.New("token name must not be empty")
	ErrInvalidOwner  = errors.New("token owner must be an active service account")
	ErrInvalidExpiry = errors.New("token expiry must be in the future")
)

// ErrUnauthorized is the single failure the auth boundary exposes for any
// credential problem. Fine-grained reasons below stay internal so callers
// cannot distinguish a wrong token from an expired or revoked one.
var ErrUnauthorized = errors.New("unauthorized")

// Internal validation failures. These are logged for audit and collapsed
// into ErrUnauthorized before crossing the HTTP boundary.
var (
	ErrTokenMalformed = errors.New("token has invalid format")
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrTokenExpired   = errors.New("token expired")

	// ErrIntegrityViolation means a token resolved to a principal that is
	// not a service account. The store invariant should make this
	// unreachable; if it fires, something rewrote roles underneath us.
	ErrIntegrityViolation = errors.New("token owner is not a service account")
)
