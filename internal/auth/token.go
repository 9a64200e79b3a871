package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies EarthFrame API tokens, so a leaked secret can
	// be found by grepping logs and repositories.
	TokenPrefix = "sbk_"
	// tokenBytes is the number of random bytes per token (256 bits).
	tokenBytes = 32
)

// GenerateToken creates a new API token secret and its storage hash.
// Format: sbk_<base64url(32 random bytes)>. The raw value is returned to the
// caller exactly once; only the SHA-256 hex digest is ever persisted.
func GenerateToken() (raw string, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate random bytes: %w", err)
	}

	raw = TokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken computes the hex-encoded SHA-256 digest of a raw token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ValidTokenFormat checks that a bearer string looks like one of our tokens.
// This is a cheap shape check before touching the store, not a security
// boundary.
func ValidTokenFormat(raw string) bool {
	if !strings.HasPrefix(raw, TokenPrefix) {
		return false
	}
	encoded := strings.TrimPrefix(raw, TokenPrefix)
	if encoded == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(encoded)
	return err == nil
}

// hashEqual compares two hex digests in constant time. The store lookup is
// already an indexed exact match, but the comparison itself must not leak
// where the digests first differ.
func hashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
