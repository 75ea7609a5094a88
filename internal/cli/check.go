package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document"
	"github.com/adyen/pricemonitor/internal/models"
	"github.com/adyen/pricemonitor/internal/services"
)

// DocumentOpener opens a fresh document with the geo endpoint mocked for
// country. An empty country leaves the endpoint alone.
type DocumentOpener func(country string) (document.Document, error)

// CheckDependencies holds all dependencies needed for a check run
type CheckDependencies struct {
	Config  *config.MonitorConfig
	Browser *config.BrowserConfig
	Repo    services.ProgressRepository
	// Alerts may be nil.
	Alerts services.AlertClient
	Open   DocumentOpener
	Logger *zap.Logger
}

// TargetOutcome is the result of checking one target. Err is set when the
// target could not be verified at all.
type TargetOutcome struct {
	Target  *models.Target
	Outcome *services.RunOutcome
	Err     error
}

// Failed reports whether the target needs attention.
func (o TargetOutcome) Failed() bool {
	return o.Err != nil || o.Outcome == nil || !o.Outcome.Passed()
}

// ErrFindings is returned by RunCheck when a target still has findings after
// its retries.
var ErrFindings = errors.New("price consistency findings remain")

// RunCheck verifies every configured target, at most TargetConcurrency at a
// time, within RunTimeout. One target failing does not stop the others.
func RunCheck(ctx context.Context, deps CheckDependencies) ([]TargetOutcome, error) {
	specs, err := deps.Config.TargetSpecs()
	if err != nil {
		return nil, err
	}
	targets := make([]*models.Target, len(specs))
	for i, spec := range specs {
		target, err := models.NewTarget(spec.URL, spec.Country, spec.Category)
		if err != nil {
			return nil, fmt.Errorf("invalid target %d: %w", i+1, err)
		}
		target.TabFilter = spec.Tabs
		target.CardFilter = spec.Cards
		targets[i] = target
	}

	ctx, cancel := context.WithTimeout(ctx, deps.Config.RunTimeout)
	defer cancel()

	outcomes := make([]TargetOutcome, len(specs))
	var g errgroup.Group
	g.SetLimit(deps.Config.TargetConcurrency)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			outcomes[i] = checkTarget(ctx, deps, spec, targets[i])
			return nil
		})
	}
	_ = g.Wait()

	LogSummary(deps.Logger, outcomes)
	if err := ctx.Err(); err != nil {
		return outcomes, fmt.Errorf("check run stopped: %w", err)
	}
	for _, o := range outcomes {
		if o.Failed() {
			return outcomes, ErrFindings
		}
	}
	return outcomes, nil
}

func checkTarget(ctx context.Context, deps CheckDependencies, spec config.TargetSpec, target *models.Target) TargetOutcome {
	out := TargetOutcome{Target: target}
	log := deps.Logger.With(
		zap.String("target", target.URL),
		zap.String("country", target.Country),
		zap.String("layout", spec.Layout))

	layout, err := config.LoadLayout(spec.Layout, deps.Config.LayoutFile)
	if err != nil {
		out.Err = err
		return out
	}

	shots := services.NewScreenshotter(deps.Config.ScreenshotDir, target.Identity(), log)
	pages := services.NewPlansPage(layout, deps.Browser, log)
	navigator := services.NewNavigator(layout, deps.Browser, shots, log)
	verifier := services.NewVerifier(pages, navigator, layout, deps.Browser, shots, log)
	reporter := services.NewReporter(deps.Config.ReportDir, deps.Alerts, log)
	monitor := services.NewMonitorService(verifier, reporter, deps.Repo, deps.Config.RetryCount, log)

	doc, err := deps.Open(spec.GeoCountry())
	if err != nil {
		out.Err = fmt.Errorf("failed to open document: %w", err)
		return out
	}
	defer func() {
		if err := doc.Close(); err != nil {
			log.Debug("failed to close document", zap.Error(err))
		}
	}()

	out.Outcome, out.Err = monitor.Check(ctx, doc, target)
	return out
}

// LogSummary logs one line per target and a total.
func LogSummary(logger *zap.Logger, outcomes []TargetOutcome) {
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
		fields := []zap.Field{zap.String("target", o.Target.URL)}
		switch {
		case o.Err != nil:
			fields = append(fields, zap.Error(o.Err))
			if o.Outcome != nil && o.Outcome.ReportPath != "" {
				fields = append(fields, zap.String("report", o.Outcome.ReportPath))
			}
			logger.Error("target not verified", fields...)
			continue
		case o.Outcome == nil:
			logger.Error("target produced no outcome", fields...)
			continue
		}

		res := o.Outcome.Result
		if res != nil {
			fields = append(fields,
				zap.Int("tabs", len(res.Tabs)),
				zap.Int("cards", len(res.Cards)),
				zap.Int("options", len(res.Options)),
				zap.Int("skipped", res.SkippedUnits))
		}
		fields = append(fields,
			zap.String("status", string(o.Outcome.Report.Status)),
			zap.Int("errors", o.Outcome.Report.ErrorCount))
		if o.Outcome.ReportPath != "" {
			fields = append(fields, zap.String("report", o.Outcome.ReportPath))
		}
		logger.Info("target checked", fields...)
	}
	logger.Info("check finished", zap.Int("targets", len(outcomes)), zap.Int("failed", failed))
}
