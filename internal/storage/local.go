package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLocalDir is used when no reports directory is configured.
const DefaultLocalDir = "local_reports"

// LocalStorage writes reports to a directory on local disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If dir is empty, DefaultLocalDir is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = DefaultLocalDir
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the reports directory.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Store writes content to <dir>/<jobID>.md and returns that path.
// The file is written to a temporary name first and renamed into place,
// so readers never see a partial report.
func (s *LocalStorage) Store(ctx context.Context, jobID, content string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	name, err := ReportName(jobID)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, "."+jobID+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write report: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close report: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("move report into place: %w", err)
	}

	return path, nil
}
