package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces a bcrypt digest of the provided plaintext. If bcrypt
// is unavailable in the runtime environment the function falls back to a plain
// SHA-256 hex digest and logs a warning: this is degraded-security mode kept
// for compatibility with constrained deployments, not an acceptable default.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		slog.Warn("bcrypt hashing failed, using SHA-256 fallback (degraded security)", "error", err)
		return fallbackDigest(plaintext), nil
	}
	return string(digest), nil
}

// VerifyPassword checks the plaintext against a stored digest. Digests created
// under the fallback path are recognised by retrying the comparison against
// the SHA-256 fallback digest whenever bcrypt reports a structural error
// rather than a plain mismatch.
func VerifyPassword(plaintext, stored string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
	if err == nil {
		return true
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(fallbackDigest(plaintext)), []byte(stored)) == 1
}

func fallbackDigest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
