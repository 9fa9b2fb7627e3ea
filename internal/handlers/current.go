package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/deepsight/backend/internal/models"
)

var errUnauthenticated = errors.New("could not validate credentials")

// currentAccount resolves the bearer token on the request to an account. The
// token is valid only if its signature verifies, it has not expired, and its
// subject still resolves to an existing account; every failure collapses to
// the same errUnauthenticated so callers leak nothing about which check failed.
func currentAccount(ctx context.Context, r *http.Request, tokens TokenManager, accounts AccountStore) (models.Account, error) {
	if tokens == nil || accounts == nil {
		return models.Account{}, errUnauthenticated
	}

	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Account{}, errUnauthenticated
	}

	subject, err := tokens.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Account{}, errUnauthenticated
	}

	account, err := accounts.FindByUsername(ctx, subject)
	if err != nil {
		return models.Account{}, errUnauthenticated
	}

	return account, nil
}
