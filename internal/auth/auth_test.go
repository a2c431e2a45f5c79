package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash should not equal the plaintext")
	}
	if !auth.CheckPassword(hash, "hunter2") {
		t.Error("correct password should verify")
	}
	if auth.CheckPassword(hash, "hunter3") {
		t.Error("wrong password should not verify")
	}
}

func TestTokenIssueVerify(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	token, err := m.Issue("alice", true)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	session, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if session.Username != "alice" {
		t.Errorf("expected username alice, got %s", session.Username)
	}
	if !session.IsAdmin {
		t.Error("expected admin flag to survive the round trip")
	}
}

func TestTokenRejectedAcrossSecrets(t *testing.T) {
	a := auth.NewManager("secret-a", time.Hour)
	b := auth.NewManager("secret-b", time.Hour)

	token, _ := a.Issue("alice", false)
	if _, err := b.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	m := auth.NewManager("test-secret", -time.Minute)

	token, _ := m.Issue("alice", false)
	if _, err := m.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Verify(raw); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Verify(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestRandomTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := auth.RandomToken()
		if len(tok) != 32 {
			t.Fatalf("expected 32-char token, got %d", len(tok))
		}
		if seen[tok] {
			t.Fatal("duplicate random token")
		}
		seen[tok] = true
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	a := auth.HashToken("raw-token")
	b := auth.HashToken("raw-token")
	if a != b {
		t.Error("same input should hash identically")
	}
	if a == auth.HashToken("other-token") {
		t.Error("different inputs should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex digest, got %d", len(a))
	}
}
