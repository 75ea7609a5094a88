package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/models"
)

// Reporter turns a finished run into a pass/fail decision and durable artifacts
type Reporter interface {
	Report(ctx context.Context, result *models.RunResult, progress ProgressStore) (*RunOutcome, error)
}

// RunOutcome is the result of reporting one run.
type RunOutcome struct {
	Result     *models.RunResult
	Report     *models.RunReport
	ReportPath string
}

// Passed reports whether the run had no findings.
func (o *RunOutcome) Passed() bool {
	return o.Report.Status == models.RunStatusPassed
}

// ReporterImpl implements Reporter
type ReporterImpl struct {
	reportDir string
	alerts    AlertClient
	logger    *zap.Logger
}

// NewReporter creates a reporter writing into reportDir. alerts may be nil.
func NewReporter(reportDir string, alerts AlertClient, logger *zap.Logger) Reporter {
	return &ReporterImpl{reportDir: reportDir, alerts: alerts, logger: logger}
}

// Report writes an error report and alerts when there are findings. A clean
// run clears the progress store instead.
func (r *ReporterImpl) Report(ctx context.Context, result *models.RunResult, progress ProgressStore) (*RunOutcome, error) {
	outcome := &RunOutcome{Result: result, Report: models.NewRunReport(result)}
	log := r.logger.With(zap.String("target", result.TargetIdentity), zap.String("run_id", outcome.Report.RunID))

	if result.Passed() {
		if err := progress.Clear(ctx); err != nil {
			return outcome, fmt.Errorf("failed to clear progress after clean run: %w", err)
		}
		log.Info("run passed, progress cleared")
		return outcome, nil
	}

	path, err := r.writeReport(outcome.Report)
	if err != nil {
		return outcome, err
	}
	outcome.ReportPath = path
	log.Error("run failed", zap.Int("errors", outcome.Report.ErrorCount), zap.String("report", path))

	if r.alerts != nil {
		if err := r.alerts.SendReport(ctx, outcome.Report); err != nil {
			log.Warn("failed to deliver alert", zap.Error(err))
		}
	}
	return outcome, nil
}

func (r *ReporterImpl) writeReport(report *models.RunReport) (string, error) {
	if err := os.MkdirAll(r.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	name := fmt.Sprintf("error-report-%s-%s.json", report.TargetIdentity, report.Timestamp.Format("20060102T150405Z"))
	path := filepath.Join(r.reportDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
