package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deepsight/backend/internal/auth"
	"github.com/deepsight/backend/internal/jobs"
	"github.com/deepsight/backend/internal/models"
	"github.com/deepsight/backend/internal/repositories"
)

type inMemoryFileStore struct {
	files map[string]models.StoredFile
}

func newInMemoryFileStore() *inMemoryFileStore {
	return &inMemoryFileStore{files: make(map[string]models.StoredFile)}
}

func (s *inMemoryFileStore) Create(_ context.Context, file models.StoredFile) error {
	if _, exists := s.files[file.FileID]; exists {
		return repositories.ErrConflict
	}
	s.files[file.FileID] = file
	return nil
}

func (s *inMemoryFileStore) Find(_ context.Context, fileID string) (models.StoredFile, error) {
	file, ok := s.files[fileID]
	if !ok {
		return models.StoredFile{}, repositories.ErrNotFound
	}
	return file, nil
}

type inMemoryJobStore struct {
	jobs map[string]models.Job
}

func newInMemoryJobStore() *inMemoryJobStore {
	return &inMemoryJobStore{jobs: make(map[string]models.Job)}
}

func (s *inMemoryJobStore) Create(_ context.Context, job models.Job) error {
	s.jobs[job.JobID] = job
	return nil
}

func (s *inMemoryJobStore) Find(_ context.Context, jobID string) (models.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, repositories.ErrNotFound
	}
	return job, nil
}

func (s *inMemoryJobStore) MarkFailed(_ context.Context, jobID, message string) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return repositories.ErrNotFound
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = message
	s.jobs[jobID] = job
	return nil
}

type noopDispatcher struct{}

func (noopDispatcher) Enqueue(context.Context, string, string, string) error { return nil }

type jobTestEnv struct {
	handler JobHandler
	files   *inMemoryFileStore
	store   *inMemoryJobStore
	token   string
}

func newJobTestEnv(t *testing.T) jobTestEnv {
	t.Helper()

	accounts := newInMemoryAccountStore()
	accounts.accounts["diver"] = models.Account{ID: "acct-1", Username: "diver", IsActive: true}
	accounts.accounts["other"] = models.Account{ID: "acct-2", Username: "other", IsActive: true}

	tokens := auth.NewTokenManager("test-secret", time.Minute)
	token, err := tokens.Issue("diver")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	files := newInMemoryFileStore()
	files.files["file-1"] = models.StoredFile{FileID: "file-1", AccountID: "acct-1"}

	store := newInMemoryJobStore()
	service := jobs.NewService(files, store, noopDispatcher{}, time.Second)

	return jobTestEnv{
		handler: JobHandler{Accounts: accounts, Tokens: tokens, Jobs: service},
		files:   files,
		store:   store,
		token:   token,
	}
}

func (env jobTestEnv) submit(t *testing.T, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	switch path {
	case "/api/detect":
		env.handler.Detect(rec, req)
	case "/api/enhance":
		env.handler.Enhance(rec, req)
	default:
		t.Fatalf("unknown path %s", path)
	}
	return rec
}

func TestJobHandlerDetectCreatesPendingJob(t *testing.T) {
	env := newJobTestEnv(t)

	rec := env.submit(t, "/api/detect", jobRequest{FileID: "file-1", Model: "yolov8"}, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp jobCreatedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != models.JobStatusPending {
		t.Fatalf("expected pending got %q", resp.Status)
	}
	if resp.Message != "Detection job queued" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	job, ok := env.store.jobs[resp.JobID]
	if !ok {
		t.Fatal("expected job record to be persisted")
	}
	if job.Kind != models.JobKindDetection || job.ModelUsed != "yolov8" || job.AccountID != "acct-1" {
		t.Fatalf("unexpected job record %+v", job)
	}
}

func TestJobHandlerEnhanceUsesMethodField(t *testing.T) {
	env := newJobTestEnv(t)

	rec := env.submit(t, "/api/enhance", jobRequest{FileID: "file-1", Method: "unet"}, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp jobCreatedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	job := env.store.jobs[resp.JobID]
	if job.Kind != models.JobKindEnhancement || job.ModelUsed != "unet" {
		t.Fatalf("unexpected job record %+v", job)
	}
}

func TestJobHandlerDetectUnknownFile(t *testing.T) {
	env := newJobTestEnv(t)

	rec := env.submit(t, "/api/detect", jobRequest{FileID: "unknown", Model: "yolov8"}, env.token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if len(env.store.jobs) != 0 {
		t.Fatal("expected no job record for unknown file")
	}
}

func TestJobHandlerRequiresToken(t *testing.T) {
	env := newJobTestEnv(t)

	rec := env.submit(t, "/api/detect", jobRequest{FileID: "file-1", Model: "yolov8"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestJobHandlerStatus(t *testing.T) {
	env := newJobTestEnv(t)

	created := env.submit(t, "/api/detect", jobRequest{FileID: "file-1", Model: "yolov8"}, env.token)
	var createdResp jobCreatedResponse
	if err := json.NewDecoder(created.Body).Decode(&createdResp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/detect/status/"+createdResp.JobID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.handler.DetectStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(resp["status"]) != `"pending"` {
		t.Fatalf("expected pending status got %s", resp["status"])
	}
	// Wire contract: result and error are present and null outside their statuses.
	if string(resp["result"]) != "null" {
		t.Fatalf("expected null result got %s", resp["result"])
	}
	if string(resp["error"]) != "null" {
		t.Fatalf("expected null error got %s", resp["error"])
	}
}

func TestJobHandlerStatusOwnership(t *testing.T) {
	env := newJobTestEnv(t)

	created := env.submit(t, "/api/detect", jobRequest{FileID: "file-1", Model: "yolov8"}, env.token)
	var createdResp jobCreatedResponse
	if err := json.NewDecoder(created.Body).Decode(&createdResp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	otherToken, err := auth.NewTokenManager("test-secret", time.Minute).Issue("other")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/detect/status/"+createdResp.JobID, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec := httptest.NewRecorder()
	env.handler.DetectStatus(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestJobHandlerStatusUnknownJob(t *testing.T) {
	env := newJobTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/enhance/status/nope", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.handler.EnhanceStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestJobHandlerStatusCompletedDetection(t *testing.T) {
	env := newJobTestEnv(t)

	env.store.jobs["job-1"] = models.Job{
		JobID:     "job-1",
		FileID:    "file-1",
		AccountID: "acct-1",
		Kind:      models.JobKindDetection,
		Status:    models.JobStatusCompleted,
		Detections: []models.Detection{
			{Label: "submarine", Confidence: 0.95, BBox: []float64{10, 20, 30, 40}},
		},
		AnnotatedFilePath: "results/job-1.jpg",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/detect/status/job-1", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.handler.DetectStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Result struct {
			Detections        []models.Detection `json:"detections"`
			AnnotatedFilePath string             `json:"annotated_file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Result.Detections) != 1 || resp.Result.Detections[0].Label != "submarine" {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
	if resp.Result.AnnotatedFilePath != "results/job-1.jpg" {
		t.Fatalf("unexpected annotated path %q", resp.Result.AnnotatedFilePath)
	}
}

type failingDispatcher struct{}

func (failingDispatcher) Enqueue(context.Context, string, string, string) error {
	return context.DeadlineExceeded
}

func TestJobHandlerDispatchFailure(t *testing.T) {
	env := newJobTestEnv(t)
	env.handler.Jobs = jobs.NewService(env.files, env.store, failingDispatcher{}, time.Second)

	rec := env.submit(t, "/api/detect", jobRequest{FileID: "file-1", Model: "yolov8"}, env.token)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeDispatch {
		t.Fatalf("expected dispatch error code got %q", resp.Code)
	}
}
