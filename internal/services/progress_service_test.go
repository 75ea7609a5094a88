package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/models"
)

// MockProgressRepository is a mock implementation of ProgressRepository for testing
type MockProgressRepository struct {
	LoadProgressFunc   func(context.Context, string) (*models.ProgressRecord, error)
	SaveProgressFunc   func(context.Context, *models.ProgressRecord) error
	DeleteProgressFunc func(context.Context, string) error
}

func (m *MockProgressRepository) LoadProgress(ctx context.Context, identity string) (*models.ProgressRecord, error) {
	if m.LoadProgressFunc != nil {
		return m.LoadProgressFunc(ctx, identity)
	}
	return nil, models.ErrProgressNotFound
}

func (m *MockProgressRepository) SaveProgress(ctx context.Context, record *models.ProgressRecord) error {
	if m.SaveProgressFunc != nil {
		return m.SaveProgressFunc(ctx, record)
	}
	return nil
}

func (m *MockProgressRepository) DeleteProgress(ctx context.Context, identity string) error {
	if m.DeleteProgressFunc != nil {
		return m.DeleteProgressFunc(ctx, identity)
	}
	return nil
}

// newMemoryRepository returns a mock that keeps records in a map.
func newMemoryRepository() *MockProgressRepository {
	records := map[string]models.ProgressRecord{}
	return &MockProgressRepository{
		LoadProgressFunc: func(_ context.Context, identity string) (*models.ProgressRecord, error) {
			r, ok := records[identity]
			if !ok {
				return nil, models.ErrProgressNotFound
			}
			r.PassedUnits = slices.Clone(r.PassedUnits)
			return &r, nil
		},
		SaveProgressFunc: func(_ context.Context, record *models.ProgressRecord) error {
			c := *record
			c.PassedUnits = slices.Clone(record.PassedUnits)
			records[record.Identity] = c
			return nil
		},
		DeleteProgressFunc: func(_ context.Context, identity string) error {
			delete(records, identity)
			return nil
		},
	}
}

func storedUnits(t *testing.T, repo ProgressRepository, identity string) []string {
	t.Helper()
	record, err := repo.LoadProgress(context.Background(), identity)
	if errors.Is(err, models.ErrProgressNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("LoadProgress() error = %v", err)
	}
	return record.PassedUnits
}

func TestLoadProgressTracker(t *testing.T) {
	tests := []struct {
		name       string
		loadRecord *models.ProgressRecord
		loadErr    error
		wantErr    bool
		wantPassed int
	}{
		{
			name:       "no record",
			loadErr:    models.ErrProgressNotFound,
			wantPassed: 0,
		},
		{
			name:       "corrupt record is treated as empty",
			loadErr:    models.ErrCorruptRecord,
			wantPassed: 0,
		},
		{
			name:       "existing record with invalid entries",
			loadRecord: &models.ProgressRecord{PassedUnits: []string{"tab0-card0", "bogus", "tab0-card0", "tab1-card2"}},
			wantPassed: 2,
		},
		{
			name:    "storage failure",
			loadErr: errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockProgressRepository{
				LoadProgressFunc: func(context.Context, string) (*models.ProgressRecord, error) {
					return tt.loadRecord, tt.loadErr
				},
			}

			tracker, err := LoadProgressTracker(context.Background(), repo, "plans-example", zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadProgressTracker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			stats := tracker.Stats()
			if stats.TotalPassed != tt.wantPassed {
				t.Errorf("TotalPassed = %d, want %d", stats.TotalPassed, tt.wantPassed)
			}
			if stats.Identity != "plans-example" {
				t.Errorf("Identity = %q, want %q", stats.Identity, "plans-example")
			}
		})
	}
}

func TestProgressTracker_MarkPassedIsIdempotent(t *testing.T) {
	saves := 0
	repo := &MockProgressRepository{
		SaveProgressFunc: func(_ context.Context, record *models.ProgressRecord) error {
			saves++
			if record.Identity != "plans-example" {
				t.Errorf("saved identity = %q", record.Identity)
			}
			return nil
		},
	}
	tracker, err := LoadProgressTracker(context.Background(), repo, "plans-example", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	unit := models.CheckoutUnit{Tab: 1, Card: 2}

	for i := 0; i < 2; i++ {
		if err := tracker.MarkPassed(context.Background(), unit); err != nil {
			t.Fatalf("MarkPassed() error = %v", err)
		}
		if !tracker.HasPassed(unit) {
			t.Errorf("HasPassed() = false after MarkPassed call %d", i+1)
		}
	}
	if saves != 1 {
		t.Errorf("record saved %d times, want 1", saves)
	}
	if got := tracker.Stats().TotalPassed; got != 1 {
		t.Errorf("TotalPassed = %d, want 1", got)
	}
}

func TestProgressTracker_MarkPassedPersistsImmediately(t *testing.T) {
	repo := newMemoryRepository()
	tracker, err := LoadProgressTracker(context.Background(), repo, "plans-example", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := tracker.MarkPassed(context.Background(), models.CheckoutUnit{Tab: 0, Card: 1}); err != nil {
		t.Fatal(err)
	}

	// A second tracker sees the mark without any flush from the first.
	reloaded, err := LoadProgressTracker(context.Background(), repo, "plans-example", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.HasPassed(models.CheckoutUnit{Tab: 0, Card: 1}) {
		t.Error("mark was not persisted")
	}
}

func TestProgressTracker_SaveFailure(t *testing.T) {
	// GIVEN a store whose first save fails
	ctx := context.Background()
	repo := newMemoryRepository()
	save := repo.SaveProgressFunc
	failures := 1
	repo.SaveProgressFunc = func(ctx context.Context, record *models.ProgressRecord) error {
		if failures > 0 {
			failures--
			return errors.New("disk full")
		}
		return save(ctx, record)
	}
	tracker, err := LoadProgressTracker(ctx, repo, "plans-example", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	unit := models.CheckoutUnit{Tab: 1, Card: 2}

	// WHEN the unit is marked
	if err := tracker.MarkPassed(ctx, unit); err == nil {
		t.Error("expected save error to be returned")
	}

	// THEN the unsaved mark does not count
	if tracker.HasPassed(unit) {
		t.Error("unit reported as passed although it was never saved")
	}
	if got := tracker.Stats().TotalPassed; got != 0 {
		t.Errorf("TotalPassed = %d, want 0", got)
	}

	// WHEN the unit is marked again
	if err := tracker.MarkPassed(ctx, unit); err != nil {
		t.Fatalf("second MarkPassed() error = %v", err)
	}

	// THEN it is persisted
	if !tracker.HasPassed(unit) {
		t.Error("unit not reported as passed after a successful save")
	}
	if diff := cmp.Diff([]string{"tab1-card2"}, storedUnits(t, repo, "plans-example")); diff != "" {
		t.Errorf("stored units mismatch (-want +got):\n%s", diff)
	}
}

func TestProgressTracker_Clear(t *testing.T) {
	repo := newMemoryRepository()
	ctx := context.Background()
	tracker, err := LoadProgressTracker(ctx, repo, "plans-example", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []models.CheckoutUnit{{Tab: 0, Card: 0}, {Tab: 0, Card: 1}} {
		if err := tracker.MarkPassed(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	if err := tracker.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if tracker.HasPassed(models.CheckoutUnit{Tab: 0, Card: 0}) {
		t.Error("tracker still reports a cleared unit as passed")
	}
	if units := storedUnits(t, repo, "plans-example"); len(units) != 0 {
		t.Errorf("store still holds %v after Clear", units)
	}
}
