package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/earthframe/earthframe/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreateUser(t *testing.T, st *Store, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Email: email, Role: role, IsActive: true}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustCreateToken(t *testing.T, st *Store, name, hash, ownerID string) *model.APIToken {
	t.Helper()
	tok := &model.APIToken{Name: name, TokenHash: hash, OwnerID: ownerID}
	if err := st.CreateToken(context.Background(), tok); err != nil {
		t.Fatalf("CreateToken(%s): %v", name, err)
	}
	return tok
}

func TestStoreFileBacked(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	if err := st.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, st, "admin@example.org", model.RoleAdmin)
	if u.ID == "" {
		t.Fatal("expected user ID to be assigned")
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be populated")
	}

	byID, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if byID.Email != "admin@example.org" || byID.Role != model.RoleAdmin {
		t.Errorf("unexpected user: %+v", byID)
	}

	byEmail, err := st.GetUserByEmail(ctx, "admin@example.org")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail ID: got %q, want %q", byEmail.ID, u.ID)
	}
}

func TestGetUserNotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetUser(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := st.GetUserByEmail(context.Background(), "nobody@example.org"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	st := newTestStore(t)
	mustCreateUser(t, st, "dup@example.org", model.RoleUser)

	err := st.CreateUser(context.Background(), &model.User{
		Email: "dup@example.org", Role: model.RoleUser, IsActive: true,
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}
}

func TestSetUserActive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)

	if err := st.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.IsActive {
		t.Error("expected user to be inactive")
	}

	if err := st.SetUserActive(ctx, "no-such-id", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCreateTokenDuplicateHash(t *testing.T) {
	st := newTestStore(t)
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)
	mustCreateToken(t, st, "first", "aaaa", u.ID)

	err := st.CreateToken(context.Background(), &model.APIToken{
		Name: "second", TokenHash: "aaaa", OwnerID: u.ID,
	})
	if !errors.Is(err, ErrDuplicateHash) {
		t.Errorf("got %v, want ErrDuplicateHash", err)
	}
}

func TestGetTokenByHash(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)
	tok := mustCreateToken(t, st, "lookup", "bbbb", u.ID)

	got, err := st.GetTokenByHash(ctx, "bbbb")
	if err != nil {
		t.Fatalf("GetTokenByHash: %v", err)
	}
	if got.ID != tok.ID {
		t.Errorf("ID: got %q, want %q", got.ID, tok.ID)
	}

	if _, err := st.GetTokenByHash(ctx, "cccc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestListTokens(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice-bot@earthframe.local", model.RoleServiceAccount)
	bob := mustCreateUser(t, st, "bob-bot@earthframe.local", model.RoleServiceAccount)

	mustCreateToken(t, st, "oldest", "h1", alice.ID)
	time.Sleep(5 * time.Millisecond)
	mustCreateToken(t, st, "middle", "h2", bob.ID)
	time.Sleep(5 * time.Millisecond)
	mustCreateToken(t, st, "newest", "h3", alice.ID)

	all, err := st.ListTokens(ctx, "")
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].Name != "newest" || all[2].Name != "oldest" {
		t.Errorf("unexpected ordering: %s, %s, %s", all[0].Name, all[1].Name, all[2].Name)
	}

	mine, err := st.ListTokens(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTokens(owner): %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len(mine) = %d, want 2", len(mine))
	}
	for _, tok := range mine {
		if tok.OwnerID != alice.ID {
			t.Errorf("token %s belongs to %s, want %s", tok.Name, tok.OwnerID, alice.ID)
		}
	}
}

func TestRevokeToken(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)
	tok := mustCreateToken(t, st, "doomed", "dddd", u.ID)

	if err := st.RevokeToken(ctx, tok.ID); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	got, err := st.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if !got.Revoked {
		t.Error("expected token to be revoked")
	}

	// Revoking again is a no-op, not an error.
	if err := st.RevokeToken(ctx, tok.ID); err != nil {
		t.Errorf("second RevokeToken: %v", err)
	}

	if err := st.RevokeToken(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateTokenLastUsed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)
	tok := mustCreateToken(t, st, "audited", "eeee", u.ID)

	if err := st.UpdateTokenLastUsed(ctx, tok.ID); err != nil {
		t.Fatalf("UpdateTokenLastUsed: %v", err)
	}
	got, err := st.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.LastUsed == nil {
		t.Error("expected last_used to be set")
	}
}

func TestCascadeDeleteUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "svc@earthframe.local", model.RoleServiceAccount)
	tok := mustCreateToken(t, st, "orphan", "ffff", u.ID)

	if _, err := st.db.ExecContext(ctx, st.db.Rebind("DELETE FROM users WHERE id = ?"), u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := st.GetToken(ctx, tok.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after owner delete", err)
	}
}
