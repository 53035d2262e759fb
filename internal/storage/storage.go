// Package storage persists finished research reports.
// It defines the Storage interface and implementations for local disk
// and S3 compatible object stores.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidName is returned when a job ID cannot be used as an artifact name.
var ErrInvalidName = errors.New("storage: invalid artifact name")

// ReportExt is the extension of stored reports.
const ReportExt = ".md"

// Storage stores the Markdown report of a job and returns where it can be
// retrieved: a file path for local disk, a time-limited URL for object stores.
type Storage interface {
	Store(ctx context.Context, jobID, content string) (location string, err error)
}

// ReportName returns the artifact name for a job's report.
func ReportName(jobID string) (string, error) {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return "", ErrInvalidName
	}
	return jobID + ReportExt, nil
}
