package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepsight/backend/internal/auth"
	"github.com/deepsight/backend/internal/logging"
	"github.com/deepsight/backend/internal/models"
	"github.com/deepsight/backend/internal/repositories"
)

// Reserved bootstrap credentials provisioned on first login in dev mode.
const (
	bootstrapUsername = "admin"
	bootstrapPassword = "admin123"
	bootstrapEmail    = "admin@example.com"
)

// AuthHandler implements the authentication endpoints.
type AuthHandler struct {
	Accounts AccountStore
	Tokens   TokenManager

	// DevMode enables on-demand provisioning of the bootstrap account. A
	// convenience seeding path for demos; must stay off in production.
	DevMode bool

	Limiter RateLimiter
	NowFunc func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type accountView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Login handles POST /api/auth/login. Credentials arrive form-encoded; the
// failure message never reveals which field was wrong.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasTokens", h.Tokens != nil)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "authentication services unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited")
		respondError(ctx, w, http.StatusTooManyRequests, codeRateLimited, "too many login attempts")
		return
	}

	if err := r.ParseForm(); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		logger.Warn("login missing credentials", "username", username)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "username and password are required")
		return
	}

	account, err := h.Accounts.FindByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		account, err = h.provisionBootstrap(r, username, password)
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown account", "username", username)
			respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Incorrect username or password")
			return
		}
	}
	if err != nil {
		logger.Error("login account lookup failed", "username", username, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "unable to verify credentials")
		return
	}

	if !auth.VerifyPassword(password, account.PasswordHash) {
		logger.Warn("login password mismatch", "accountId", account.ID)
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Incorrect username or password")
		return
	}

	token, err := h.Tokens.Issue(account.Username)
	if err != nil {
		logger.Error("failed to issue token", "error", err, "accountId", account.ID)
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "failed to create session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /api/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	account, err := currentAccount(ctx, r, h.Tokens, h.Accounts)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
		return
	}

	respondJSON(ctx, w, http.StatusOK, accountView{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		IsActive: account.IsActive,
	})
}

// provisionBootstrap creates the reserved demo account on first login when
// dev mode is enabled. Any other unknown account keeps ErrNotFound.
func (h AuthHandler) provisionBootstrap(r *http.Request, username, password string) (models.Account, error) {
	if !h.DevMode || username != bootstrapUsername || password != bootstrapPassword {
		return models.Account{}, repositories.ErrNotFound
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	hashed, err := auth.HashPassword(bootstrapPassword)
	if err != nil {
		return models.Account{}, err
	}

	now := h.now()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     bootstrapUsername,
		Email:        bootstrapEmail,
		PasswordHash: hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a race with a concurrent first login; use the winner's row.
			return h.Accounts.FindByUsername(ctx, bootstrapUsername)
		}
		return models.Account{}, err
	}

	logger.Info("bootstrap account provisioned", "username", bootstrapUsername)
	return account, nil
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
