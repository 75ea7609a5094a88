package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/document"
	"github.com/adyen/pricemonitor/internal/models"
)

// MonitorService runs the verifier for a target until it passes or the
// retry budget is spent, then reports
type MonitorService interface {
	Check(ctx context.Context, doc document.Document, target *models.Target) (*RunOutcome, error)
}

// MonitorServiceImpl implements MonitorService
type MonitorServiceImpl struct {
	verifier Verifier
	reporter Reporter
	repo     ProgressRepository
	retries  int
	logger   *zap.Logger
}

// NewMonitorService creates a new monitor service. retries is the number of
// extra verifier passes allowed while findings remain.
func NewMonitorService(verifier Verifier, reporter Reporter, repo ProgressRepository, retries int, logger *zap.Logger) MonitorService {
	return &MonitorServiceImpl{
		verifier: verifier,
		reporter: reporter,
		repo:     repo,
		retries:  retries,
		logger:   logger,
	}
}

// Check runs the verifier up to retries+1 times. Each pass resumes from the
// progress left by the previous one, so only failed units are re-verified.
// When the final pass aborts, the last completed pass is still reported and
// returned along with the error.
func (s *MonitorServiceImpl) Check(ctx context.Context, doc document.Document, target *models.Target) (*RunOutcome, error) {
	identity := target.Identity()
	log := s.logger.With(zap.String("target", target.URL))

	progress, err := LoadProgressTracker(ctx, s.repo, identity, log)
	if err != nil {
		return nil, err
	}

	// completed is the last pass that ran to the end; its findings are
	// reported even when a later retry aborts.
	var result, completed *models.RunResult
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying failed units", zap.Int("attempt", attempt+1), zap.Int("passed", progress.Stats().TotalPassed))
		}
		result, err = s.verifier.Run(ctx, doc, target, progress)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run cancelled: %w", ctxErr)
		}
		if err != nil {
			log.Error("run aborted", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		completed = result
		if result.Passed() {
			break
		}
		log.Warn("run produced findings", zap.Int("attempt", attempt+1), zap.Int("findings", len(result.Findings)))
	}
	if err != nil {
		if completed == nil {
			return nil, err
		}
		log.Warn("reporting findings of the last completed pass", zap.Int("findings", len(completed.Findings)))
		outcome, rerr := s.reporter.Report(ctx, completed, progress)
		if rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return outcome, err
	}

	return s.reporter.Report(ctx, result, progress)
}
