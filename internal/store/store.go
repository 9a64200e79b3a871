package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/earthframe/earthframe/internal/model"
)

// Store persists users and API tokens. SQLite is the default backend; a
// postgres:// DSN selects Postgres via the pgx stdlib driver. All queries
// are written with `?` placeholders and rebound per driver.
type Store struct {
	db *sqlx.DB
}

// New opens the store. An empty DSN yields an in-memory SQLite database
// (used by tests and dev mode). A postgres:// or postgresql:// DSN connects
// to Postgres. Anything else is treated as a directory for the SQLite file.
func New(dsn string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		db, err = sqlx.Connect("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}

	default:
		var path string
		if dsn == "" {
			path = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(dsn, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = filepath.Join(dsn, "earthframe.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. A missing ID is assigned a fresh UUID and
// CreatedAt is populated before the insert.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO users (id, email, role, is_active, created_at)
		VALUES (:id, :email, :role, :is_active, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, u); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT * FROM users WHERE id = ?")
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT * FROM users WHERE email = ?")
	if err := s.db.GetContext(ctx, &u, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// SetUserActive toggles the is_active flag. Deactivating a user makes
// every token owned by it unusable without touching the token rows.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	q := s.db.Rebind("UPDATE users SET is_active = ? WHERE id = ?")
	res, err := s.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ---------------------------------------------------------------------------
// API tokens
// ---------------------------------------------------------------------------

// CreateToken inserts a new API token record. The TokenHash must already be
// set. A missing ID is assigned a fresh UUID and CreatedAt is populated.
// Returns ErrDuplicateHash if the hash collides with an existing row.
func (s *Store) CreateToken(ctx context.Context, t *model.APIToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_tokens (id, name, token_hash, user_id, created_at, expires_at, revoked)
		VALUES (:id, :name, :token_hash, :user_id, :created_at, :expires_at, :revoked)`

	if _, err := s.db.NamedExecContext(ctx, q, t); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("insert api token: %w", err)
	}
	return nil
}

// GetTokenByHash looks up an API token by its SHA-256 hash. The lookup is an
// indexed exact match, so query time does not depend on whether the token
// exists.
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*model.APIToken, error) {
	var t model.APIToken
	q := s.db.Rebind("SELECT * FROM api_tokens WHERE token_hash = ?")
	if err := s.db.GetContext(ctx, &t, q, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api token by hash: %w", err)
	}
	return &t, nil
}

// GetToken returns an API token by ID.
func (s *Store) GetToken(ctx context.Context, id string) (*model.APIToken, error) {
	var t model.APIToken
	q := s.db.Rebind("SELECT * FROM api_tokens WHERE id = ?")
	if err := s.db.GetContext(ctx, &t, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api token: %w", err)
	}
	return &t, nil
}

// ListTokens returns API tokens ordered by creation time, newest first.
// A non-empty ownerID restricts the result to that owner's tokens.
func (s *Store) ListTokens(ctx context.Context, ownerID string) ([]model.APIToken, error) {
	var (
		tokens []model.APIToken
		err    error
	)
	if ownerID != "" {
		q := s.db.Rebind("SELECT * FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC")
		err = s.db.SelectContext(ctx, &tokens, q, ownerID)
	} else {
		err = s.db.SelectContext(ctx, &tokens, "SELECT * FROM api_tokens ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	return tokens, nil
}

// RevokeToken marks a token as revoked. Revoking an already-revoked token
// succeeds silently; the transition is one-way and rows are never deleted.
// Returns ErrNotFound if no token with the given ID exists.
func (s *Store) RevokeToken(ctx context.Context, id string) error {
	q := s.db.Rebind("UPDATE api_tokens SET revoked = TRUE WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api token rows affected: %w", err)
	}
	if n == 0 {
		// Already-revoked rows still match the WHERE clause above, so zero
		// rows means the token genuinely does not exist.
		return ErrNotFound
	}
	return nil
}

// UpdateTokenLastUsed sets the last_used timestamp for a token. Best-effort
// auditing; callers fire and forget.
func (s *Store) UpdateTokenLastUsed(ctx context.Context, id string) error {
	q := s.db.Rebind("UPDATE api_tokens SET last_used = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update api token last used: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint error from
// either backend.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
