package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/store"
)

// TokenHandler serves the admin-only token-management API. Routes mounting
// these handlers must be wrapped in Authenticate and RequireRoles(ADMIN).
type TokenHandler struct {
	store  *store.Store
	issuer *auth.Issuer
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(st *store.Store, issuer *auth.Issuer) *TokenHandler {
	return &TokenHandler{store: st, issuer: issuer}
}

// createTokenRequest is the expected payload for Create.
type createTokenRequest struct {
	Name      string     `json:"name"`
	OwnerID   string     `json:"owner_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createTokenResponse includes the raw secret, shown once only.
type createTokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"` // Raw secret, shown ONCE.
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Create issues a new API token for a service account and returns the raw
// secret exactly once. No later endpoint can reconstruct it.
// POST /api/v1/tokens
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	token, raw, err := h.issuer.Issue(r.Context(), req.Name, req.OwnerID, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "name is required")
		case errors.Is(err, auth.ErrInvalidOwner):
			writeError(w, http.StatusBadRequest, "owner_id must reference an active service account")
		case errors.Is(err, auth.ErrInvalidExpiry):
			writeError(w, http.StatusBadRequest, "expires_at must be in the future")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createTokenResponse{
		ID:        token.ID,
		Name:      token.Name,
		Token:     raw,
		OwnerID:   token.OwnerID,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	})
}

// List returns all tokens, newest first, optionally filtered by owner.
// Neither the raw secret nor the stored hash ever appears in the response.
// GET /api/v1/tokens?owner_id=...
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.ListTokens(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// Revoke marks a token as revoked. Revoking an already-revoked token is a
// no-op that still returns 204.
// DELETE /api/v1/tokens/{tokenID}
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tokenID")

	if err := h.store.RevokeToken(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
