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

// maxHashRetries bounds regeneration attempts after a digest collision.
// With 256 bits of entropy a collision is astronomically unlikely, so a
// small bound is plenty.
const maxHashRetries = 3

// Issuer mints API tokens for service accounts. The raw secret is returned
// exactly once from Issue; only its digest reaches the store.
type Issuer struct {
	store  *store.Store
	logger *slog.Logger
}

// NewIssuer creates an Issuer backed by the given store.
func NewIssuer(st *store.Store, logger *slog.Logger) *Issuer {
	return &Issuer{store: st, logger: logger}
}

// Issue validates the request, generates a fresh secret, and persists the
// token record. Returns the persisted record and the raw secret. Fails with
// ErrInvalidName, ErrInvalidOwner, or ErrInvalidExpiry on bad input.
func (i *Issuer) Issue(ctx context.Context, name, ownerID string, expiresAt *time.Time) (*model.APIToken, string, error) {
	if name == "" {
		return nil, "", ErrInvalidName
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, "", ErrInvalidExpiry
	}

	owner, err := i.store.GetUser(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidOwner
		}
		return nil, "", fmt.Errorf("look up token owner: %w", err)
	}
	if !owner.IsActive || !owner.IsServiceAccount() {
		return nil, "", ErrInvalidOwner
	}

	// Regenerate on digest collision rather than failing the request.
	for attempt := 0; attempt < maxHashRetries; attempt++ {
		raw, hash, err := GenerateToken()
		if err != nil {
			return nil, "", err
		}

		token := &model.APIToken{
			Name:      name,
			TokenHash: hash,
			OwnerID:   owner.ID,
			ExpiresAt: expiresAt,
		}
		if err := i.store.CreateToken(ctx, token); err != nil {
			if errors.Is(err, store.ErrDuplicateHash) {
				i.logger.Warn("token hash collision, regenerating", "attempt", attempt+1)
				continue
			}
			return nil, "", fmt.Errorf("persist api token: %w", err)
		}

		i.logger.Info("api token issued",
			"token_id", token.ID,
			"name", token.Name,
			"owner_id", token.OwnerID,
		)
		return token, raw, nil
	}

	return nil, "", fmt.Errorf("persist api token: exhausted %d attempts after hash collisions", maxHashRetries)
}
