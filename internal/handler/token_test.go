package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createServiceAccount(t *testing.T, st *store.Store, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Role: model.RoleServiceAccount, IsActive: true}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func tokenRouter(st *store.Store) chi.Router {
	h := NewTokenHandler(st, auth.NewIssuer(st, testLogger()))
	r := chi.NewRouter()
	r.Post("/tokens", h.Create)
	r.Get("/tokens", h.List)
	r.Delete("/tokens/{tokenID}", h.Revoke)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestCreateToken(t *testing.T) {
	st := newTestStore(t)
	owner := createServiceAccount(t, st, "ingest@earthframe.local")
	router := tokenRouter(st)

	rec := postJSON(t, router, "/tokens", map[string]string{
		"name":     "nightly ingest",
		"owner_id": owner.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201; body: %s", rec.Code, rec.Body)
	}

	var resp struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Token   string `json:"token"`
		OwnerID string `json:"owner_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Token, auth.TokenPrefix) {
		t.Errorf("raw token %q missing prefix", resp.Token)
	}
	if resp.OwnerID != owner.ID {
		t.Errorf("owner_id: got %q, want %q", resp.OwnerID, owner.ID)
	}

	// The raw secret must not be recoverable afterwards: the stored record
	// carries only the digest.
	stored, err := st.GetToken(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if stored.TokenHash != auth.HashToken(resp.Token) {
		t.Error("stored hash does not match the returned secret")
	}
}

func TestCreateTokenValidation(t *testing.T) {
	st := newTestStore(t)
	owner := createServiceAccount(t, st, "ingest@earthframe.local")
	human := &model.User{Email: "human@example.org", Role: model.RoleUser, IsActive: true}
	if err := st.CreateUser(context.Background(), human); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	router := tokenRouter(st)

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing owner_id", map[string]string{"name": "t"}},
		{"empty name", map[string]string{"name": "", "owner_id": owner.ID}},
		{"unknown owner", map[string]string{"name": "t", "owner_id": "no-such-id"}},
		{"human owner", map[string]string{"name": "t", "owner_id": human.ID}},
		{"past expiry", map[string]string{"name": "t", "owner_id": owner.ID, "expires_at": past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/tokens", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400; body: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestListTokensHidesSecrets(t *testing.T) {
	st := newTestStore(t)
	owner := createServiceAccount(t, st, "ingest@earthframe.local")
	router := tokenRouter(st)

	rec := postJSON(t, router, "/tokens", map[string]string{
		"name": "visible", "owner_id": owner.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/tokens", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, r)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list: got %d", listRec.Code)
	}

	body := listRec.Body.String()
	if strings.Contains(body, "token_hash") || strings.Contains(body, auth.TokenPrefix) {
		t.Errorf("listing leaks token material: %s", body)
	}

	var tokens []model.APIToken
	if err := json.Unmarshal(listRec.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Name != "visible" {
		t.Errorf("unexpected listing: %+v", tokens)
	}
}

func TestListTokensOwnerFilter(t *testing.T) {
	st := newTestStore(t)
	a := createServiceAccount(t, st, "a@earthframe.local")
	b := createServiceAccount(t, st, "b@earthframe.local")
	router := tokenRouter(st)

	for _, owner := range []*model.User{a, a, b} {
		rec := postJSON(t, router, "/tokens", map[string]string{
			"name": "t", "owner_id": owner.ID,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: got %d", rec.Code)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/tokens?owner_id="+a.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	var tokens []model.APIToken
	if err := json.Unmarshal(rec.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("len = %d, want 2", len(tokens))
	}
}

func TestRevokeToken(t *testing.T) {
	st := newTestStore(t)
	owner := createServiceAccount(t, st, "ingest@earthframe.local")
	router := tokenRouter(st)

	rec := postJSON(t, router, "/tokens", map[string]string{
		"name": "doomed", "owner_id": owner.ID,
	})
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	del := func(id string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/tokens/%s", id), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		return rec
	}

	if got := del(created.ID); got.Code != http.StatusNoContent {
		t.Errorf("revoke: got %d, want 204", got.Code)
	}
	// Idempotent: a second revoke still succeeds.
	if got := del(created.ID); got.Code != http.StatusNoContent {
		t.Errorf("re-revoke: got %d, want 204", got.Code)
	}
	if got := del("no-such-id"); got.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", got.Code)
	}
}
