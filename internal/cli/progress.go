package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/database"
	"github.com/adyen/pricemonitor/internal/models"
	"github.com/adyen/pricemonitor/internal/repository"
	"github.com/adyen/pricemonitor/internal/services"
)

// ProgressBackend is a progress repository that can enumerate its records
type ProgressBackend interface {
	services.ProgressRepository
	ListIdentities(ctx context.Context) ([]string, error)
}

// OpenProgressBackend returns the configured progress repository and a
// function releasing it.
func OpenProgressBackend(cfg *config.MonitorConfig, logger *zap.Logger) (ProgressBackend, func(), error) {
	if cfg.ProgressBackend != config.ProgressBackendPostgres {
		logger.Debug("using file progress store", zap.String("dir", cfg.StateDir))
		return repository.NewFileProgressRepository(cfg.StateDir), func() {}, nil
	}

	if err := database.Connect(os.Getenv); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	release := func() {
		if err := database.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if err := database.RunMigrations(logger); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("using postgres progress store")
	return repository.NewPostgresProgressRepository(), release, nil
}

// TargetIdentities returns the progress identities of the configured targets.
func TargetIdentities(cfg *config.MonitorConfig) ([]string, error) {
	specs, err := cfg.TargetSpecs()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		target, err := models.NewTarget(spec.URL, spec.Country, spec.Category)
		if err != nil {
			return nil, err
		}
		ids = append(ids, target.Identity())
	}
	return ids, nil
}

// ShowProgress prints the passed-unit count of each identity. With no
// identities every stored record is shown.
func ShowProgress(ctx context.Context, repo ProgressBackend, identities []string, w io.Writer, logger *zap.Logger) error {
	if len(identities) == 0 {
		var err error
		if identities, err = repo.ListIdentities(ctx); err != nil {
			return fmt.Errorf("failed to list progress records: %w", err)
		}
	}
	if len(identities) == 0 {
		fmt.Fprintln(w, "no progress recorded")
		return nil
	}

	for _, id := range identities {
		if _, err := repo.LoadProgress(ctx, id); errors.Is(err, models.ErrProgressNotFound) {
			fmt.Fprintf(w, "%s\tno progress\n", id)
			continue
		}
		tracker, err := services.LoadProgressTracker(ctx, repo, id, logger)
		if err != nil {
			return err
		}
		stats := tracker.Stats()
		fmt.Fprintf(w, "%s\t%d passed\t%s\n", stats.Identity, stats.TotalPassed, stats.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

// ClearProgress deletes the progress records of identities.
func ClearProgress(ctx context.Context, repo services.ProgressRepository, identities []string, logger *zap.Logger) error {
	for _, id := range identities {
		if err := repo.DeleteProgress(ctx, id); err != nil {
			return fmt.Errorf("failed to clear progress for %s: %w", id, err)
		}
		logger.Info("progress cleared", zap.String("identity", id))
	}
	return nil
}
