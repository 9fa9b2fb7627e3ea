package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound indicates the referenced file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrJobNotFound indicates no job exists for the requested identifier.
	ErrJobNotFound = errors.New("job not found")
	// ErrForbidden indicates the requester does not own the job.
	ErrForbidden = errors.New("access denied")
)

// DispatchError wraps a failure of the external compute enqueue call. The
// caller always sees the failure; a pending record is never orphaned silently.
type DispatchError struct {
	JobID string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch job %s: %v", e.JobID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
