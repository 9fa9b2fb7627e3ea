package auth

import (
	"testing"
	"time"
)

func TestTokenManagerIssueAndValidate(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Minute)

	token, err := manager.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	subject, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if subject != "admin" {
		t.Fatalf("expected subject admin got %q", subject)
	}
}

func TestTokenManagerIssueValidation(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Minute)
	if _, err := manager.Issue(""); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestTokenManagerExpiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	manager := NewTokenManager("test-secret", 30*time.Minute)
	manager.NowFunc = func() time.Time { return issued }

	token, err := manager.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Just inside the TTL.
	manager.NowFunc = func() time.Time { return issued.Add(29 * time.Minute) }
	if _, err := manager.Validate(token); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	// At and past the expiry instant.
	manager.NowFunc = func() time.Time { return issued.Add(31 * time.Minute) }
	if _, err := manager.Validate(token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated after expiry got %v", err)
	}
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Minute)
	other := NewTokenManager("another-secret", time.Minute)

	token, err := other.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := manager.Validate(token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated for foreign signature got %v", err)
	}
}

func TestTokenManagerRejectsGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Minute)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := manager.Validate(token); err != ErrUnauthenticated {
			t.Fatalf("expected ErrUnauthenticated for %q got %v", token, err)
		}
	}
}
