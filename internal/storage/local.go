package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps recordings on the local filesystem under one root
// directory, one subdirectory per session.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local filesystem recording store.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(s.root, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	// Atomic write: temp file + rename, so the import watcher and the
	// pipeline never see a half-written recording.
	tmp, err := os.CreateTemp(dir, ".rec-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *LocalStore) LocalPath(key string) string {
	full := filepath.Join(s.root, key)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	return ""
}

func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(filepath.Join(s.root, key))
	return err == nil
}

func (s *LocalStore) RemoveSession(ctx context.Context, sessionID string) error {
	dir := filepath.Join(s.root, sessionID)
	if dir == s.root {
		return fmt.Errorf("refusing to remove storage root")
	}
	return os.RemoveAll(dir)
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the storage root directory.
func (s *LocalStore) Dir() string { return s.root }
