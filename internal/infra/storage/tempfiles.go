package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// RequestStore holds the transient on-disk copies of one request's uploads.
// Each request gets its own uuid-named directory; nothing is shared across
// requests and Cleanup removes the whole directory on every exit path.
type RequestStore struct {
	dir string
	log *slog.Logger
}

// NewRequestStore creates the per-request directory under baseDir
// (os.TempDir() when empty).
func NewRequestStore(baseDir string, log *slog.Logger) (*RequestStore, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := filepath.Join(baseDir, "medreport-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &RequestStore{dir: dir, log: log}, nil
}

// Save streams one multipart part to disk and returns the storage path.
// The stored name is uuid-based so hostile original filenames never touch
// the filesystem.
func (s *RequestStore) Save(originalName string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, uuid.New().String()+filepath.Ext(originalName))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write temp file for %s: %w", originalName, err)
	}
	return path, nil
}

// Dir returns the request-scoped directory path.
func (s *RequestStore) Dir() string { return s.dir }

// Cleanup removes the request directory and everything in it. Failures are
// logged and swallowed; cleanup is advisory and never blocks the response.
func (s *RequestStore) Cleanup() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.log.Warn("failed to remove transient uploads", "dir", s.dir, "error", err)
	}
}
