package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestUser(t *testing.T, st *store.Store, email string, role model.Role, active bool) *model.User {
	t.Helper()
	u := &model.User{Email: email, Role: role, IsActive: active}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func deactivateUser(t *testing.T, st *store.Store, id string) {
	t.Helper()
	if err := st.SetUserActive(context.Background(), id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
}
