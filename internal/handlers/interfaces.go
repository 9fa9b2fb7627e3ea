package handlers

import (
	"context"

	"github.com/deepsight/backend/internal/jobs"
	"github.com/deepsight/backend/internal/models"
	"github.com/deepsight/backend/internal/storage"
)

// AccountStore captures the persistence operations required by the auth handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByUsername(ctx context.Context, username string) (models.Account, error)
}

// TokenManager issues and validates bearer tokens.
type TokenManager interface {
	Issue(subject string) (string, error)
	Validate(token string) (string, error)
}

// JobService mediates job creation and status reads.
type JobService interface {
	Create(ctx context.Context, fileID, accountID, kind, method string) (models.Job, error)
	Status(ctx context.Context, jobID, accountID string) (jobs.StatusView, error)
}

// FileStore captures persistence for uploaded file metadata.
type FileStore interface {
	Create(ctx context.Context, file models.StoredFile) error
	Find(ctx context.Context, fileID string) (models.StoredFile, error)
}

// ObjectStorage persists uploaded media bytes.
type ObjectStorage = storage.ObjectStorage
