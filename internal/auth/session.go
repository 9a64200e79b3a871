package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

// SessionCookieName is the cookie the OAuth login flow sets after a
// successful code exchange. This service only reads it.
const SessionCookieName = "earthframe_session"

// SessionResolver resolves ambient browser credentials to a user. The OAuth
// flow that creates sessions lives outside this service; this interface is
// its read-side contract.
type SessionResolver interface {
	ResolveSession(r *http.Request) (*model.User, error)
}

// CookieSessions validates the signed session JWT carried in the browser
// cookie and resolves it to a user. It implements SessionResolver.
type CookieSessions struct {
	store  *store.Store
	secret []byte
	logger *slog.Logger
}

// NewCookieSessions creates a CookieSessions resolver with the given signing
// secret, which must match the one used by the OAuth login flow.
func NewCookieSessions(st *store.Store, secret string, logger *slog.Logger) *CookieSessions {
	return &CookieSessions{store: st, secret: []byte(secret), logger: logger}
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ResolveSession reads the session cookie, verifies the JWT signature and
// expiry, and loads the referenced user. Returns ErrUnauthorized for any
// failure; sessions have no enumeration concern beyond tokens, and keeping
// a single failure shape simplifies the resolver chain.
func (c *CookieSessions) ResolveSession(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrUnauthorized
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	user, err := c.store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	if user.IsServiceAccount() {
		// Service accounts have no browser identity; a session claiming one
		// was forged or issued by a broken login flow.
		c.logger.Error("session cookie resolved to a service account", "user_id", user.ID)
		return nil, ErrUnauthorized
	}

	return user, nil
}

// IssueSession creates a signed session JWT for a user. The production login
// flow lives in the OAuth subsystem; this is used by tests and local dev
// tooling to mint sessions without a browser round-trip.
func (c *CookieSessions) IssueSession(user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "earthframe",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
