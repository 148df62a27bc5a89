package storage

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DiskStore implements Store using one file per key under a base directory.
type DiskStore struct {
	logger  *zap.Logger
	baseDir string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a new disk store, creating the base directory if it
// does not exist.
func NewDiskStore(logger *zap.Logger, baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &DiskStore{
		logger:  logger.Named("storage.disk"),
		baseDir: baseDir,
	}, nil
}

// Get implements Store.Get
func (s *DiskStore) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return string(data), nil
}

// Set implements Store.Set
func (s *DiskStore) Set(_ context.Context, key, value string) error {
	// Write-then-rename so a crash mid-write never leaves a torn value.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Delete implements Store.Delete
func (s *DiskStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.baseDir, key)
}
