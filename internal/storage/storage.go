// Package storage provides job workspaces and artifact publishing.
// It defines the Storage interface (port) and implementations for local disk
// and S3 storage.
package storage

import (
	"context"
)

// PutInput describes an artifact to publish.
type PutInput struct {
	Key         string
	LocalPath   string
	ContentType string
	PublicRead  bool
}

// Storage defines the interface for per-job scratch space and final delivery.
type Storage interface {
	// CreateWorkspace allocates a fresh directory for one job. Two calls with
	// the same jobID never return the same directory.
	CreateWorkspace(ctx context.Context, jobID string) (dir string, err error)

	// RemoveWorkspace recursively deletes a directory created by
	// CreateWorkspace. Removing an already-removed workspace is not an error.
	RemoveWorkspace(ctx context.Context, dir string) error

	// Publish stores the file at in.LocalPath under in.Key and returns the
	// URL it can be fetched from.
	Publish(ctx context.Context, in PutInput) (url string, err error)
}
