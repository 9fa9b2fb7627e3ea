package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemStorage implements ObjectStorage on a local directory. It is the
// default backend for single-node deployments.
type FileSystemStorage struct {
	dir string
}

// NewFileSystemStorage ensures the upload directory exists and returns a store
// rooted at it.
func NewFileSystemStorage(dir string) (*FileSystemStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("filesystem storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &FileSystemStorage{dir: dir}, nil
}

// Save writes the content under the upload directory and returns the path.
// Name is flattened to its base so callers cannot escape the directory.
func (s *FileSystemStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("filesystem storage: invalid name %q", name)
	}

	path := filepath.Join(s.dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	return path, nil
}

var _ ObjectStorage = (*FileSystemStorage)(nil)
