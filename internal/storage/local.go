package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when asked to remove a directory that is not a
// workspace of this storage.
var ErrOutsideBase = errors.New("storage: path is outside the workspace root")

// publishedDir is the subdirectory used by LocalStorage.Publish.
const publishedDir = "published"

// LocalStorage implements the Storage interface using local disk.
// Publish copies artifacts under <baseDir>/published and returns file:// URLs,
// which is enough for development without object storage.
type LocalStorage struct {
	baseDir string
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance rooted at baseDir.
// If baseDir is empty, <os.TempDir()>/faceswap is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "faceswap")
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &LocalStorage{baseDir: abs}, nil
}

// BaseDir returns the workspace root.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// CreateWorkspace creates <baseDir>/faceswap_<jobID>_<random>.
func (s *LocalStorage) CreateWorkspace(ctx context.Context, jobID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir, err := os.MkdirTemp(s.baseDir, "faceswap_"+sanitize(jobID)+"_")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// RemoveWorkspace deletes dir and everything below it. It refuses paths that
// are not strictly inside the workspace root.
func (s *LocalStorage) RemoveWorkspace(_ context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}

	rel, err := filepath.Rel(s.baseDir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s", ErrOutsideBase, dir)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("remove workspace %s: %w", dir, err)
	}
	return nil
}

// Publish copies the artifact to <baseDir>/published/<key> and returns a
// file:// URL for it.
func (s *LocalStorage) Publish(ctx context.Context, in PutInput) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest := filepath.Join(s.baseDir, publishedDir, filepath.FromSlash(in.Key))
	rel, err := filepath.Rel(filepath.Join(s.baseDir, publishedDir), dest)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: key %q", ErrOutsideBase, in.Key)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}

	if err := copyFile(in.LocalPath, dest); err != nil {
		return "", fmt.Errorf("publish %s: %w", in.Key, err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}
	return u.String(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is an artifact inside a job workspace
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// sanitize keeps job identifiers from escaping the workspace root.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', os.PathSeparator:
			return '_'
		}
		return r
	}, id)
}
