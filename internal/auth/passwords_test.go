package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	digest, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Fatalf("expected bcrypt digest, got %q", digest)
	}
	if !VerifyPassword("hunter2hunter2", digest) {
		t.Fatal("expected round trip to verify")
	}
	if VerifyPassword("wrong-password", digest) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestVerifyRejectsMutatedDigest(t *testing.T) {
	digest, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// Flip one character of the digest body; verification must fail.
	mutated := []byte(digest)
	i := len(mutated) - 1
	if mutated[i] == 'a' {
		mutated[i] = 'b'
	} else {
		mutated[i] = 'a'
	}
	if VerifyPassword("correct horse battery", string(mutated)) {
		t.Fatal("expected mutated digest to fail verification")
	}
}

func TestVerifyFallbackDigest(t *testing.T) {
	// A digest written under the degraded SHA-256 path is not valid bcrypt
	// input, so bcrypt errors structurally and the fallback comparison runs.
	sum := sha256.Sum256([]byte("admin123"))
	stored := hex.EncodeToString(sum[:])

	if !VerifyPassword("admin123", stored) {
		t.Fatal("expected fallback digest to verify")
	}
	if VerifyPassword("admin124", stored) {
		t.Fatal("expected wrong password to fail against fallback digest")
	}
}
