package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/models"
)

// ProgressRepository defines the interface for progress persistence
type ProgressRepository interface {
	// LoadProgress returns models.ErrProgressNotFound when no record exists and
	// models.ErrCorruptRecord when the stored record cannot be decoded.
	LoadProgress(ctx context.Context, identity string) (*models.ProgressRecord, error)
	SaveProgress(ctx context.Context, record *models.ProgressRecord) error
	DeleteProgress(ctx context.Context, identity string) error
}

// ProgressStore tracks which checkout units already passed for one target.
type ProgressStore interface {
	HasPassed(unit models.CheckoutUnit) bool
	MarkPassed(ctx context.Context, unit models.CheckoutUnit) error
	Clear(ctx context.Context) error
	Stats() ProgressStats
}

// ProgressStats summarizes a progress record.
type ProgressStats struct {
	Identity    string
	TotalPassed int
	Timestamp   time.Time
}

// ProgressTracker implements ProgressStore on top of a ProgressRepository
type ProgressTracker struct {
	mu     sync.Mutex
	repo   ProgressRepository
	record *models.ProgressRecord
	logger *zap.Logger
}

// LoadProgressTracker loads the record for identity. A missing or corrupt
// record yields an empty tracker.
func LoadProgressTracker(ctx context.Context, repo ProgressRepository, identity string, logger *zap.Logger) (*ProgressTracker, error) {
	record, err := repo.LoadProgress(ctx, identity)
	switch {
	case errors.Is(err, models.ErrProgressNotFound):
		record = models.NewProgressRecord(identity)
	case errors.Is(err, models.ErrCorruptRecord):
		logger.Warn("discarding corrupt progress record", zap.String("identity", identity), zap.Error(err))
		record = models.NewProgressRecord(identity)
	case err != nil:
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	if dropped := record.Compact(); dropped > 0 {
		logger.Warn("dropped invalid progress entries", zap.String("identity", identity), zap.Int("dropped", dropped))
	}
	record.Identity = identity

	if record.Len() > 0 {
		logger.Info("resuming from saved progress",
			zap.String("identity", identity),
			zap.Int("passed", record.Len()),
			zap.Time("since", record.Timestamp))
	}

	return &ProgressTracker{repo: repo, record: record, logger: logger}, nil
}

// HasPassed reports whether unit is recorded as passed.
func (t *ProgressTracker) HasPassed(unit models.CheckoutUnit) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Has(unit)
}

// MarkPassed records unit and persists the record before returning. Marking
// an already-passed unit is a no-op. The unit only counts as passed once the
// save succeeded.
func (t *ProgressTracker) MarkPassed(ctx context.Context, unit models.CheckoutUnit) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.record.Clone()
	if !next.Add(unit) {
		return nil
	}
	if err := t.repo.SaveProgress(ctx, next); err != nil {
		return fmt.Errorf("failed to save progress for %s: %w", unit, err)
	}
	t.record = next
	t.logger.Debug("unit marked as passed", zap.String("unit", unit.Key()))
	return nil
}

// Clear drops the record entirely.
func (t *ProgressTracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.repo.DeleteProgress(ctx, t.record.Identity); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	t.record = models.NewProgressRecord(t.record.Identity)
	return nil
}

// Stats returns the number of passed units and when the record was started.
func (t *ProgressTracker) Stats() ProgressStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ProgressStats{
		Identity:    t.record.Identity,
		TotalPassed: t.record.Len(),
		Timestamp:   t.record.Timestamp,
	}
}
