package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/earthframe/earthframe/internal/model"
)

// TokenResolver resolves a raw bearer token to its owner. Implemented by
// Validator; an interface so tests can instrument the fallback path.
type TokenResolver interface {
	Validate(ctx context.Context, raw string) (*model.User, error)
}

// Resolver composes the two authentication mechanisms for each request:
// the OAuth/session path for humans and the API-token path for service
// accounts. Session resolution always runs first, so a live human session
// can never be overridden by a stale or forged Bearer header sent in the
// same request. The Bearer fallback only runs when the session path failed
// and a Bearer header is present.
type Resolver struct {
	session SessionResolver
	tokens  TokenResolver
	logger  *slog.Logger
}

// NewResolver creates a Resolver from the session collaborator and the
// token validator.
func NewResolver(session SessionResolver, tokens TokenResolver, logger *slog.Logger) *Resolver {
	return &Resolver{session: session, tokens: tokens, logger: logger}
}

// Resolve authenticates a request. On failure it returns ErrUnauthorized
// with no further detail: the fine-grained token failure reasons are logged
// here and deliberately not propagated.
func (a *Resolver) Resolve(r *http.Request) (*model.User, error) {
	if user, err := a.session.ResolveSession(r); err == nil {
		return user, nil
	}

	raw, ok := BearerToken(r)
	if !ok {
		return nil, ErrUnauthorized
	}

	user, err := a.tokens.Validate(r.Context(), raw)
	if err != nil {
		a.logger.Warn("bearer token rejected",
			"reason", err,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		return nil, ErrUnauthorized
	}

	// The validator already enforces this; re-verify rather than trust, the
	// token path must never yield a human identity.
	if !user.IsServiceAccount() {
		a.logger.Error("token path produced non-service-account principal", "user_id", user.ID)
		return nil, ErrUnauthorized
	}

	return user, nil
}

// BearerToken extracts the credential from an "Authorization: Bearer ..."
// header. Returns false if the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", false
	}
	return token, true
}
