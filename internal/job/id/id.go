// Package id provides unique identifier generation for jobs.
package id

import (
	"github.com/google/uuid"
)

// Generate creates a new unique job ID (random UUIDv4).
// Example: 9b2f6a1e-1c3d-4f5e-8a9b-0c1d2e3f4a5b
func Generate() string {
	return uuid.NewString()
}

// Valid reports whether s has the shape of an ID returned by Generate.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
