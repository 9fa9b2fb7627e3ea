package models

import "time"

// Account represents a registered operator of the DeepSight platform.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoredFile records metadata for an uploaded image or video.
type StoredFile struct {
	FileID      string
	Filename    string
	Location    string
	FileSize    int64
	ContentType string
	AccountID   string
	CreatedAt   time.Time
}

// Job kinds accepted by the processing pipelines.
const (
	JobKindEnhancement = "enhancement"
	JobKindDetection   = "detection"
)

// Job statuses. pending and processing are non-terminal; the external
// compute worker owns every transition past pending.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Detection is a single detected object within a processed frame or file.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
	ClassID    *int      `json:"class_id,omitempty"`
}

// Job tracks one unit of asynchronous enhancement or detection work.
type Job struct {
	JobID     string
	FileID    string
	AccountID string
	Kind      string
	Status    string
	ModelUsed string

	// Detection results, populated once a detection job completes.
	Detections        []Detection
	AnnotatedFilePath string

	// Enhancement results, populated once an enhancement job completes.
	EnhancedFilePath string
	Metrics          map[string]float64

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
