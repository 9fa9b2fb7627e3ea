package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/deepsight/backend/internal/jobs"
	"github.com/deepsight/backend/internal/logging"
	"github.com/deepsight/backend/internal/models"
)

// JobHandler exposes the detection and enhancement pipelines.
type JobHandler struct {
	Accounts AccountStore
	Tokens   TokenManager
	Jobs     JobService
}

type jobRequest struct {
	FileID string `json:"file_id"`
	Model  string `json:"model"`
	Method string `json:"method"`
}

type jobCreatedResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type jobStatusResponse struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	Result any     `json:"result"`
	Error  *string `json:"error"`
}

// Detect handles POST /api/detect.
func (h JobHandler) Detect(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.JobKindDetection, "Detection job queued")
}

// Enhance handles POST /api/enhance.
func (h JobHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.JobKindEnhancement, "Enhancement job queued")
}

// DetectStatus handles GET /api/detect/status/{job_id}.
func (h JobHandler) DetectStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "/api/detect/status/")
}

// EnhanceStatus handles GET /api/enhance/status/{job_id}.
func (h JobHandler) EnhanceStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "/api/enhance/status/")
}

func (h JobHandler) create(w http.ResponseWriter, r *http.Request, kind, message string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Jobs == nil {
		logger.Error("job service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "job service unavailable")
		return
	}

	account, err := currentAccount(ctx, r, h.Tokens, h.Accounts)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid job payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	req.FileID = strings.TrimSpace(req.FileID)
	if req.FileID == "" {
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "file_id is required")
		return
	}

	// Detection requests name a model, enhancement requests a method.
	method := req.Model
	if kind == models.JobKindEnhancement {
		method = req.Method
	}

	job, err := h.Jobs.Create(ctx, req.FileID, account.ID, kind, method)
	if err != nil {
		var dispatchErr *jobs.DispatchError
		switch {
		case errors.Is(err, jobs.ErrFileNotFound):
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "File not found")
		case errors.As(err, &dispatchErr):
			logger.Error("job dispatch failed", "error", err)
			respondError(ctx, w, http.StatusBadGateway, codeDispatch, "failed to queue job for processing")
		default:
			logger.Error("job creation failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, codeInternal, "failed to create job")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, jobCreatedResponse{
		JobID:   job.JobID,
		Status:  job.Status,
		Message: message,
	})
}

func (h JobHandler) status(w http.ResponseWriter, r *http.Request, prefix string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Jobs == nil {
		logger.Error("job service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, codeInternal, "job service unavailable")
		return
	}

	account, err := currentAccount(ctx, r, h.Tokens, h.Accounts)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, prefix)
	if jobID == "" || strings.Contains(jobID, "/") {
		respondError(ctx, w, http.StatusBadRequest, codeValidation, "job id is required")
		return
	}

	view, err := h.Jobs.Status(ctx, jobID, account.ID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "Job not found")
		case errors.Is(err, jobs.ErrForbidden):
			respondError(ctx, w, http.StatusForbidden, codeForbidden, "Access denied")
		default:
			logger.Error("job status lookup failed", "jobId", jobID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, codeInternal, "failed to read job status")
		}
		return
	}

	resp := jobStatusResponse{
		JobID:  view.JobID,
		Status: view.Status,
		Result: view.Result,
	}
	if view.Error != "" {
		msg := view.Error
		resp.Error = &msg
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}
