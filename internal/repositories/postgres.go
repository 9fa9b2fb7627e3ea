package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deepsight/backend/internal/db"
	"github.com/deepsight/backend/internal/models"
)

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record. Username uniqueness is enforced by
// the database and surfaced as ErrConflict.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, username, email, password_hash, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, account.ID, account.Username, account.Email, account.PasswordHash, account.IsActive, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByUsername fetches an account by its unique username.
func (r *PostgresAccountRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.findBy(ctx, "username", username)
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findBy(ctx, "id", id)
}

func (r *PostgresAccountRepository) findBy(ctx context.Context, column, value string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, username, email, password_hash, is_active, created_at, updated_at
        FROM accounts
        WHERE %s = $1
    `, column), value)

	var account models.Account
	if err := row.Scan(&account.ID, &account.Username, &account.Email, &account.PasswordHash, &account.IsActive, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account by %s: %w", column, err)
	}

	return account, nil
}

// PostgresFileRepository provides PostgreSQL-backed persistence for uploaded file metadata.
type PostgresFileRepository struct {
	pool db.Pool
}

// NewPostgresFileRepository constructs a file repository backed by PostgreSQL.
func NewPostgresFileRepository(pool db.Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

// Create stores metadata for an uploaded file.
func (r *PostgresFileRepository) Create(ctx context.Context, file models.StoredFile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO files (file_id, filename, location, file_size, content_type, account_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, file.FileID, file.Filename, file.Location, file.FileSize, file.ContentType, file.AccountID, file.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert file: %w", err)
	}

	return nil
}

// Find fetches file metadata by its identifier.
func (r *PostgresFileRepository) Find(ctx context.Context, fileID string) (models.StoredFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT file_id, filename, location, file_size, content_type, account_id, created_at
        FROM files
        WHERE file_id = $1
    `, fileID)

	var file models.StoredFile
	if err := row.Scan(&file.FileID, &file.Filename, &file.Location, &file.FileSize, &file.ContentType, &file.AccountID, &file.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StoredFile{}, ErrNotFound
		}
		return models.StoredFile{}, fmt.Errorf("select file: %w", err)
	}

	return file, nil
}

// PostgresJobRepository provides PostgreSQL-backed persistence for jobs. The
// method-specific result payloads live in JSONB columns so the external
// worker can attach whatever shape its model produces.
type PostgresJobRepository struct {
	pool db.Pool
}

// NewPostgresJobRepository constructs a job repository backed by PostgreSQL.
func NewPostgresJobRepository(pool db.Pool) *PostgresJobRepository {
	return &PostgresJobRepository{pool: pool}
}

// Create persists a new job record.
func (r *PostgresJobRepository) Create(ctx context.Context, job models.Job) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	detections, err := marshalNullable(job.Detections)
	if err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}
	metrics, err := marshalNullable(job.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO jobs (job_id, file_id, account_id, job_type, status, model_used,
                          detections, annotated_file_path, enhanced_file_path, metrics,
                          error_message, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, job.JobID, job.FileID, job.AccountID, job.Kind, job.Status, job.ModelUsed,
		detections, job.AnnotatedFilePath, job.EnhancedFilePath, metrics,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

// Find fetches a job record by its identifier.
func (r *PostgresJobRepository) Find(ctx context.Context, jobID string) (models.Job, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Job{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT job_id, file_id, account_id, job_type, status, model_used,
               detections, annotated_file_path, enhanced_file_path, metrics,
               error_message, created_at, updated_at
        FROM jobs
        WHERE job_id = $1
    `, jobID)

	var (
		job        models.Job
		detections []byte
		metrics    []byte
	)
	if err := row.Scan(&job.JobID, &job.FileID, &job.AccountID, &job.Kind, &job.Status, &job.ModelUsed,
		&detections, &job.AnnotatedFilePath, &job.EnhancedFilePath, &metrics,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, ErrNotFound
		}
		return models.Job{}, fmt.Errorf("select job: %w", err)
	}

	if len(detections) > 0 {
		if err := json.Unmarshal(detections, &job.Detections); err != nil {
			return models.Job{}, fmt.Errorf("decode detections: %w", err)
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &job.Metrics); err != nil {
			return models.Job{}, fmt.Errorf("decode metrics: %w", err)
		}
	}

	return job, nil
}

// MarkFailed records a terminal failure for the provided job. Used when the
// dispatch call fails so a pending record is never orphaned silently.
func (r *PostgresJobRepository) MarkFailed(ctx context.Context, jobID, message string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE jobs
        SET status = $2, error_message = $3, updated_at = $4
        WHERE job_id = $1
    `, jobID, models.JobStatusFailed, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func marshalNullable(v any) ([]byte, error) {
	switch value := v.(type) {
	case []models.Detection:
		if value == nil {
			return nil, nil
		}
	case map[string]float64:
		if value == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
var _ FileRepository = (*PostgresFileRepository)(nil)
var _ JobRepository = (*PostgresJobRepository)(nil)
