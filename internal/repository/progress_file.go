package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adyen/pricemonitor/internal/models"
)

const (
	stateFilePrefix = "state-"
	stateFileSuffix = ".json"
)

// FileProgressRepository stores one JSON file per target identity
type FileProgressRepository struct {
	dir string
}

// NewFileProgressRepository creates a file-backed progress repository rooted at dir
func NewFileProgressRepository(dir string) *FileProgressRepository {
	return &FileProgressRepository{dir: dir}
}

func (r *FileProgressRepository) path(identity string) string {
	return filepath.Join(r.dir, stateFilePrefix+identity+stateFileSuffix)
}

// LoadProgress reads the record for identity
func (r *FileProgressRepository) LoadProgress(_ context.Context, identity string) (*models.ProgressRecord, error) {
	data, err := os.ReadFile(r.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	record := &models.ProgressRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptRecord, err)
	}
	if record.Identity == "" {
		record.Identity = identity
	}
	if record.Identity != identity {
		return nil, fmt.Errorf("%w: file holds identity %q", models.ErrCorruptRecord, record.Identity)
	}
	return record, nil
}

// SaveProgress replaces the record on disk. The write goes to a temp file
// that is synced and renamed over the old one, so a crash leaves either the
// old or the new record.
func (r *FileProgressRepository) SaveProgress(_ context.Context, record *models.ProgressRecord) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close progress: %w", err)
	}
	if err := os.Rename(tmpPath, r.path(record.Identity)); err != nil {
		return fmt.Errorf("failed to replace progress: %w", err)
	}

	success = true
	return nil
}

// DeleteProgress removes the record for identity. Deleting a missing record is not an error.
func (r *FileProgressRepository) DeleteProgress(_ context.Context, identity string) error {
	if err := os.Remove(r.path(identity)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// ListIdentities returns the identities that have a record, sorted
func (r *FileProgressRepository) ListIdentities(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state dir: %w", err)
	}

	var identities []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stateFilePrefix) || !strings.HasSuffix(name, stateFileSuffix) {
			continue
		}
		identities = append(identities, strings.TrimSuffix(strings.TrimPrefix(name, stateFilePrefix), stateFileSuffix))
	}
	sort.Strings(identities)
	return identities, nil
}
