package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for every token validation failure. Callers
// receive no detail about which check failed.
var ErrUnauthenticated = errors.New("could not validate credentials")

// TokenManager issues and validates signed bearer tokens. Tokens are never
// persisted: validity is purely a function of signature and expiry.
type TokenManager struct {
	secret []byte
	ttl    time.Duration

	// NowFunc overrides the time source in tests.
	NowFunc func() time.Time
}

// NewTokenManager constructs a manager signing tokens with the provided secret
// and default TTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if secret == "" {
		panic("auth: token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token embedding the subject and an absolute expiry.
func (m *TokenManager) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("subject must be provided")
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses the token and returns its subject. Signature mismatch,
// structural corruption, and expiry all fail uniformly with ErrUnauthenticated.
func (m *TokenManager) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}

	if claims.Subject == "" {
		return "", ErrUnauthenticated
	}

	return claims.Subject, nil
}

// TTL reports the default validity window for issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}
