package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/model"
)

type contextKeyAuth string

// userKey is the context key for the authenticated user.
const userKey contextKeyAuth = "auth_user"

// Authenticate returns an HTTP middleware that resolves the request's
// credentials through the auth resolver: OAuth/session cookie first, then
// an API token from the Authorization Bearer header. On success the user is
// attached to the request context; on failure a 401 JSON response is
// returned with no detail about which mechanism failed or why.
func Authenticate(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles returns an HTTP middleware that enforces role membership for
// the endpoint. It must run after Authenticate. Identity is established by
// this point, so the 403 is specific, unlike the deliberately opaque 401.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !allowed[user.Role] {
				writeAuthError(w, http.StatusForbidden, "Insufficient role for this endpoint")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser extracts the authenticated user from the context. Returns nil if
// the request is unauthenticated.
func GetUser(ctx context.Context) *model.User {
	if u, ok := ctx.Value(userKey).(*model.User); ok {
		return u
	}
	return nil
}

// WithUser returns a context carrying the given user. Used by tests to
// exercise handlers without running the full middleware chain.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
