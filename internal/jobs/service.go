package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deepsight/backend/internal/logging"
	"github.com/deepsight/backend/internal/models"
	"github.com/deepsight/backend/internal/repositories"
)

// FileStore captures the file lookups required by the lifecycle service.
type FileStore interface {
	Find(ctx context.Context, fileID string) (models.StoredFile, error)
}

// JobStore captures the persistence operations required by the lifecycle service.
type JobStore interface {
	Create(ctx context.Context, job models.Job) error
	Find(ctx context.Context, jobID string) (models.Job, error)
	MarkFailed(ctx context.Context, jobID, message string) error
}

// Dispatcher hands a persisted job off to the external compute system. The
// contract is opaque beyond accepting (job_id, file_id, method).
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID, fileID, method string) error
}

// DetectionResult is the payload returned for completed detection jobs.
type DetectionResult struct {
	Detections        []models.Detection `json:"detections"`
	AnnotatedFilePath string             `json:"annotated_file_path"`
}

// EnhancementResult is the payload returned for completed enhancement jobs.
type EnhancementResult struct {
	EnhancedFilePath string             `json:"enhanced_file_path"`
	Metrics          map[string]float64 `json:"metrics"`
}

// StatusView is the owner-visible projection of a job record. Result is nil
// for every status except completed; Error is empty for every status except
// failed.
type StatusView struct {
	JobID  string
	Status string
	Result any
	Error  string
}

// Service creates job records and mediates between API-facing requests and
// the external compute dispatch contract. It never transitions a job past
// pending itself.
type Service struct {
	files      FileStore
	jobs       JobStore
	dispatcher Dispatcher

	dispatchTimeout time.Duration
	nowFunc         func() time.Time
}

// NewService constructs the job lifecycle service. A non-positive timeout
// disables the dispatch deadline.
func NewService(files FileStore, jobs JobStore, dispatcher Dispatcher, dispatchTimeout time.Duration) *Service {
	if files == nil || jobs == nil || dispatcher == nil {
		panic("jobs: file store, job store and dispatcher must not be nil")
	}
	return &Service{
		files:           files,
		jobs:            jobs,
		dispatcher:      dispatcher,
		dispatchTimeout: dispatchTimeout,
	}
}

// Create verifies the referenced file exists, persists a pending job owned by
// accountID, and enqueues it with the external compute system. A dispatch
// failure marks the record failed and is returned as a *DispatchError.
func (s *Service) Create(ctx context.Context, fileID, accountID, kind, method string) (models.Job, error) {
	logger := logging.FromContext(ctx)

	if _, err := s.files.Find(ctx, fileID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Job{}, ErrFileNotFound
		}
		return models.Job{}, fmt.Errorf("verify file %s: %w", fileID, err)
	}

	now := s.now()
	job := models.Job{
		JobID:     uuid.NewString(),
		FileID:    fileID,
		AccountID: accountID,
		Kind:      kind,
		Status:    models.JobStatusPending,
		ModelUsed: method,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("persist job: %w", err)
	}

	dispatchCtx, span := logging.StartSpan(ctx, "jobs.dispatch")
	if s.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(dispatchCtx, s.dispatchTimeout)
		defer cancel()
	}

	err := s.dispatcher.Enqueue(dispatchCtx, job.JobID, job.FileID, job.ModelUsed)
	span.End()
	if err != nil {
		logger.Error("job dispatch failed", "jobId", job.JobID, "error", err)
		if markErr := s.jobs.MarkFailed(ctx, job.JobID, "dispatch failed: "+err.Error()); markErr != nil {
			logger.Error("failed to mark job failed after dispatch error", "jobId", job.JobID, "error", markErr)
		}
		return models.Job{}, &DispatchError{JobID: job.JobID, Err: err}
	}

	logger.Info("job created", "jobId", job.JobID, "fileId", fileID, "kind", kind, "model", method)

	return job, nil
}

// Status returns the owner-visible view of a job. Only the owning account may
// read it.
func (s *Service) Status(ctx context.Context, jobID, accountID string) (StatusView, error) {
	job, err := s.jobs.Find(ctx, jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return StatusView{}, ErrJobNotFound
		}
		return StatusView{}, fmt.Errorf("find job %s: %w", jobID, err)
	}

	if job.AccountID != accountID {
		return StatusView{}, ErrForbidden
	}

	view := StatusView{
		JobID:  job.JobID,
		Status: job.Status,
	}

	switch job.Status {
	case models.JobStatusCompleted:
		switch job.Kind {
		case models.JobKindDetection:
			detections := job.Detections
			if detections == nil {
				detections = []models.Detection{}
			}
			view.Result = DetectionResult{
				Detections:        detections,
				AnnotatedFilePath: job.AnnotatedFilePath,
			}
		case models.JobKindEnhancement:
			view.Result = EnhancementResult{
				EnhancedFilePath: job.EnhancedFilePath,
				Metrics:          job.Metrics,
			}
		}
	case models.JobStatusFailed:
		view.Error = job.ErrorMessage
	}

	return view, nil
}

func (s *Service) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now().UTC()
}
