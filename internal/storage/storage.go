package storage

import (
	"context"
	"io"
)

// ObjectStorage persists uploaded media bytes and returns a location string
// that is stored alongside the file metadata.
type ObjectStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
