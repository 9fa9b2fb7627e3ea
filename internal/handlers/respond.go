package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/deepsight/backend/internal/logging"
)

// Stable machine codes surfaced alongside client-facing error messages.
const (
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeValidation      = "validation_error"
	codeDispatch        = "dispatch_error"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	respondJSON(ctx, w, status, errorResponse{Error: message, Code: code})
}
