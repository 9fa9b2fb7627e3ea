package repositories

import (
	"context"

	"github.com/deepsight/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// FileRepository defines the data access contract for uploaded file metadata.
type FileRepository interface {
	Create(ctx context.Context, file models.StoredFile) error
	Find(ctx context.Context, fileID string) (models.StoredFile, error)
}

// JobRepository defines the data access contract for job records. This core
// creates pending records and reads them back; status transitions past
// pending belong to the external compute worker.
type JobRepository interface {
	Create(ctx context.Context, job models.Job) error
	Find(ctx context.Context, jobID string) (models.Job, error)
	MarkFailed(ctx context.Context, jobID, message string) error
}
