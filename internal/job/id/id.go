// Package id provides unique identifier generation for jobs.
package id

import (
	"github.com/google/uuid"
)

// Generate creates a new unique job ID for triggers that do not supply one.
// Format: job-<uuid>
// Example: job-0f8fad5b-d9cb-469f-a165-70867728950e
func Generate() string {
	return "job-" + uuid.NewString()
}
