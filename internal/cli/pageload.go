package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/models"
	"github.com/adyen/pricemonitor/internal/services"
)

// ErrUnhealthyPages is returned by RunPageLoad when any page failed its check.
var ErrUnhealthyPages = errors.New("page health check failed")

// PageLoadDependencies holds all dependencies needed for a page health run
type PageLoadDependencies struct {
	Config    *config.PageLoadConfig
	Probe     services.PageProbe
	UserAgent string
	Logger    *zap.Logger
}

// RunPageLoad checks every configured page and writes the JSON report.
func RunPageLoad(ctx context.Context, deps PageLoadDependencies) (*models.PageLoadReport, string, error) {
	links := services.NewLinkChecker(deps.Config.LinkCheckConcurrency, deps.Config.LinkTimeout, deps.UserAgent)
	svc := services.NewPageHealthService(deps.Config, links, deps.Logger)

	report := svc.CheckPages(ctx, deps.Probe, deps.Config.URLs)
	path, err := svc.WriteReport(report)
	if err != nil {
		return report, "", err
	}

	deps.Logger.Info("page health check finished",
		zap.String("run_id", report.RunID),
		zap.Int("pages", report.TotalTests),
		zap.Int("failed", report.FailedTests),
		zap.Int("errors_404", report.Summary.Total404Errors),
		zap.String("success_rate", report.Summary.SuccessRate),
		zap.String("report", path))

	if err := ctx.Err(); err != nil {
		return report, path, fmt.Errorf("page health run stopped: %w", err)
	}
	if report.FailedTests > 0 {
		return report, path, ErrUnhealthyPages
	}
	return report, path, nil
}
