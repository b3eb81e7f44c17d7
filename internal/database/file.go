package database

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// FileStore loads snapshots from a JSON file shaped like models.Snapshot.
// The file is re-read on every load so edits are picked up without a restart.
type FileStore struct {
	path string
}

// NewFileStore creates a new file-backed snapshot store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Name identifies the store in logs and metrics
func (s *FileStore) Name() string {
	return "file"
}

// Health reports whether the snapshot file is readable
func (s *FileStore) Health(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("health check failed: %s is a directory", s.path)
	}
	return nil
}

// LoadSnapshot reads and decodes the snapshot file
func (s *FileStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadSnapshotFile(s.path)
}

// ReadSnapshotFile decodes a JSON snapshot from path
func ReadSnapshotFile(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}
