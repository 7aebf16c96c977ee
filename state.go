package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// lastSeenRecord is the single durable record owned by this process.
type lastSeenRecord struct {
	LastID string `json:"last_id"`
}

// FileStateStore keeps the last-seen marker in a small JSON file,
// rewritten atomically after each forward.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a store backed by the file at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the marker from disk. A missing file means no message has
// been forwarded yet.
func (s *FileStateStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state file: %w", err)
	}

	var rec lastSeenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	return rec.LastID, nil
}

// Save writes the marker through a temp file and rename so a crash
// mid-write cannot corrupt the record.
func (s *FileStateStore) Save(lastID string) error {
	data, err := json.Marshal(lastSeenRecord{LastID: lastID})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".last_seen-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
