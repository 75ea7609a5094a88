package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adyen/pricemonitor/internal/models"
)

type progressRepository interface {
	LoadProgress(ctx context.Context, identity string) (*models.ProgressRecord, error)
	SaveProgress(ctx context.Context, record *models.ProgressRecord) error
	DeleteProgress(ctx context.Context, identity string) error
	ListIdentities(ctx context.Context) ([]string, error)
}

// testProgressRoundTrip exercises the behaviour every backend shares.
func testProgressRoundTrip(t *testing.T, repo progressRepository) {
	t.Helper()
	ctx := context.Background()
	const identity = "plans-https---www-example-com-plans-html"

	if _, err := repo.LoadProgress(ctx, identity); !errors.Is(err, models.ErrProgressNotFound) {
		t.Fatalf("LoadProgress() on empty store error = %v, want ErrProgressNotFound", err)
	}

	record := models.NewProgressRecord(identity)
	record.Timestamp = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	record.Add(models.CheckoutUnit{Tab: 1, Card: 2})
	record.Add(models.CheckoutUnit{Tab: 0, Card: 0})
	if err := repo.SaveProgress(ctx, record); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	got, err := repo.LoadProgress(ctx, identity)
	if err != nil {
		t.Fatalf("LoadProgress() error = %v", err)
	}
	if diff := cmp.Diff(record, got); diff != "" {
		t.Errorf("LoadProgress() mismatch (-want +got):\n%s", diff)
	}

	record.Add(models.CheckoutUnit{Tab: 1, Card: 3})
	if err := repo.SaveProgress(ctx, record); err != nil {
		t.Fatalf("SaveProgress() overwrite error = %v", err)
	}
	got, err = repo.LoadProgress(ctx, identity)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"tab1-card2", "tab0-card0", "tab1-card3"}, got.PassedUnits); diff != "" {
		t.Errorf("PassedUnits after overwrite mismatch (-want +got):\n%s", diff)
	}

	other := models.NewProgressRecord("plans-https---www-example-com-uk-plans-html")
	if err := repo.SaveProgress(ctx, other); err != nil {
		t.Fatal(err)
	}
	ids, err := repo.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities() error = %v", err)
	}
	if diff := cmp.Diff([]string{identity, other.Identity}, ids); diff != "" {
		t.Errorf("ListIdentities() mismatch (-want +got):\n%s", diff)
	}

	if err := repo.DeleteProgress(ctx, identity); err != nil {
		t.Fatalf("DeleteProgress() error = %v", err)
	}
	if _, err := repo.LoadProgress(ctx, identity); !errors.Is(err, models.ErrProgressNotFound) {
		t.Errorf("LoadProgress() after delete error = %v, want ErrProgressNotFound", err)
	}
	if err := repo.DeleteProgress(ctx, identity); err != nil {
		t.Errorf("DeleteProgress() of missing record error = %v", err)
	}
	if _, err := repo.LoadProgress(ctx, other.Identity); err != nil {
		t.Errorf("deleting one identity affected another: %v", err)
	}
}

func TestFileProgressRepository_RoundTrip(t *testing.T) {
	testProgressRoundTrip(t, NewFileProgressRepository(filepath.Join(t.TempDir(), ".test-state")))
}

func TestFileProgressRepository_FileLayout(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileProgressRepository(dir)
	record := models.NewProgressRecord("plans-x")
	record.Add(models.CheckoutUnit{Tab: 0, Card: 1})

	if err := repo.SaveProgress(context.Background(), record); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state-plans-x.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("state dir holds %v, want only state-plans-x.json", names)
	}
}

func TestFileProgressRepository_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"identity": "plans-x", "passedUnits": ["tab0-ca`},
		{name: "wrong type", content: `{"identity": "plans-x", "passedUnits": "tab0-card0"}`},
		{name: "foreign identity", content: `{"identity": "plans-y", "passedUnits": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "state-plans-x.json"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := NewFileProgressRepository(dir).LoadProgress(context.Background(), "plans-x")
			if !errors.Is(err, models.ErrCorruptRecord) {
				t.Errorf("LoadProgress() error = %v, want ErrCorruptRecord", err)
			}
		})
	}
}

func TestFileProgressRepository_ListMissingDir(t *testing.T) {
	ids, err := NewFileProgressRepository(filepath.Join(t.TempDir(), "absent")).ListIdentities(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("ListIdentities() = %v, %v; want empty, nil", ids, err)
	}
}
