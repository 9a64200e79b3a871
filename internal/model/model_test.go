package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleUser, RoleServiceAccount} {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false", r)
		}
	}
	for _, r := range []Role{"", "root", "ADMIN"} {
		if r.Valid() {
			t.Errorf("Role(%q).Valid() = true", r)
		}
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	if (&APIToken{}).Expired(now) {
		t.Error("token without expiry should never expire")
	}
	if !(&APIToken{ExpiresAt: &past}).Expired(now) {
		t.Error("token past its expiry should be expired")
	}
	if (&APIToken{ExpiresAt: &future}).Expired(now) {
		t.Error("token before its expiry should not be expired")
	}
}

func TestTokenJSONHidesHash(t *testing.T) {
	tok := APIToken{ID: "t1", Name: "n", TokenHash: "deadbeef", OwnerID: "u1"}
	buf, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(buf), "deadbeef") {
		t.Errorf("serialized token leaks the hash: %s", buf)
	}
}
