package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

// Validator resolves raw bearer tokens to their owning service account.
// Revocation takes effect on the next request: every validation hits the
// store, there is no cache of token validity.
type Validator struct {
	store  *store.Store
	logger *slog.Logger
}

// NewValidator creates a Validator backed by the given store.
func NewValidator(st *store.Store, logger *slog.Logger) *Validator {
	return &Validator{store: st, logger: logger}
}

// Validate checks a raw bearer token and returns its owner. The returned
// errors are fine-grained for internal logging; callers at the HTTP boundary
// must collapse them all into a generic unauthorized response so a caller
// cannot probe which tokens exist, are expired, or were revoked.
func (v *Validator) Validate(ctx context.Context, raw string) (*model.User, error) {
	if !ValidTokenFormat(raw) {
		return nil, ErrTokenMalformed
	}

	hash := HashToken(raw)
	token, err := v.store.GetTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		// Transient persistence failure degrades to a rejection, never a
		// retry loop on the auth path.
		return nil, fmt.Errorf("token lookup: %w", err)
	}

	// The lookup is an indexed exact match, but recheck the digest in
	// constant time in case a non-exact code path is ever introduced.
	if !hashEqual(token.TokenHash, hash) {
		return nil, ErrTokenNotFound
	}

	if token.Revoked {
		return nil, ErrTokenRevoked
	}
	if token.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	owner, err := v.store.GetUser(ctx, token.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("token owner lookup: %w", err)
	}
	if !owner.IsActive {
		return nil, ErrTokenRevoked
	}
	if !owner.IsServiceAccount() {
		// Tokens can only be issued to service accounts, so this means the
		// owner's role changed underneath an outstanding token.
		v.logger.Error("api token resolved to non-service-account principal",
			"token_id", token.ID,
			"owner_id", owner.ID,
			"role", owner.Role,
		)
		return nil, ErrIntegrityViolation
	}

	// Best-effort usage audit; never blocks or fails validation.
	go func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.store.UpdateTokenLastUsed(ctx, id); err != nil {
			v.logger.Debug("update token last used", "token_id", id, "error", err)
		}
	}(token.ID)

	return owner, nil
}
