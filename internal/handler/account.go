package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

// AccountHandler serves the admin-only service-account API. Creation is
// idempotent: provisioning scripts can re-run without special-casing
// "already exists".
type AccountHandler struct {
	store  *store.Store
	domain string // email domain for derived service-account addresses
}

// NewAccountHandler creates an AccountHandler. The domain is appended to
// service names to form the account email, e.g. "ingest@earthframe.io".
func NewAccountHandler(st *store.Store, domain string) *AccountHandler {
	return &AccountHandler{store: st, domain: domain}
}

type createServiceAccountRequest struct {
	ServiceName string `json:"service_name"`
}

type serviceAccountResponse struct {
	ID      string     `json:"id"`
	Email   string     `json:"email"`
	Role    model.Role `json:"role"`
	Created bool       `json:"created"`
}

// CreateServiceAccount creates a SERVICE_ACCOUNT user for the given service
// name. Returns 200 with created=false if an account with the derived email
// already exists, 201 otherwise.
// POST /api/v1/service-accounts
func (h *AccountHandler) CreateServiceAccount(w http.ResponseWriter, r *http.Request) {
	var req createServiceAccountRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	name := strings.TrimSpace(req.ServiceName)
	if name == "" || strings.ContainsAny(name, "@ ") {
		writeError(w, http.StatusBadRequest, "service_name must be a non-empty name without spaces or '@'")
		return
	}

	email := name + "@" + h.domain

	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err == nil {
		writeJSON(w, http.StatusOK, serviceAccountResponse{
			ID:      existing.ID,
			Email:   existing.Email,
			Role:    existing.Role,
			Created: false,
		})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to look up service account")
		return
	}

	user := &model.User{
		Email:    email,
		Role:     model.RoleServiceAccount,
		IsActive: true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create service account")
		return
	}

	writeJSON(w, http.StatusCreated, serviceAccountResponse{
		ID:      user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Created: true,
	})
}

// ListServiceAccounts returns all SERVICE_ACCOUNT users.
// GET /api/v1/service-accounts
func (h *AccountHandler) ListServiceAccounts(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list service accounts")
		return
	}

	accounts := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Role == model.RoleServiceAccount {
			accounts = append(accounts, u)
		}
	}
	writeJSON(w, http.StatusOK, accounts)
}
