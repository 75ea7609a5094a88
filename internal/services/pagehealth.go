package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/models"
)

// PageProbe is a loaded page as seen by the health check
type PageProbe interface {
	// Load navigates to url and returns the main response status.
	Load(ctx context.Context, url string) (int, error)
	Has(ctx context.Context, selector string) (bool, error)
	// ConsoleErrors returns console and uncaught page errors seen since Load.
	ConsoleErrors() []string
	Links(ctx context.Context) ([]string, error)
	Screenshot(path string, fullPage bool) error
}

// CriticalConsoleErrors drops console errors containing any ignored pattern,
// compared case-insensitively.
func CriticalConsoleErrors(errs, ignored []string) []string {
	var critical []string
	for _, e := range errs {
		lower := strings.ToLower(e)
		if !slices.ContainsFunc(ignored, func(p string) bool { return strings.Contains(lower, strings.ToLower(p)) }) {
			critical = append(critical, e)
		}
	}
	return critical
}

// CheckableLinks dedupes and sorts hrefs, dropping tel:, mailto: and chat links.
func CheckableLinks(hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	var out []string
	for _, h := range hrefs {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		u, err := url.Parse(h)
		if err != nil || u.Scheme == "tel" || u.Scheme == "mailto" || u.Fragment == "open-jarvis-chat" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// LinkChecker probes links with HEAD requests using a bounded worker pool
type LinkChecker struct {
	client      *http.Client
	concurrency int
	userAgent   string
}

// NewLinkChecker returns a LinkChecker. Redirects are followed, so a moved
// link reports the status of its destination.
func NewLinkChecker(concurrency int, timeout time.Duration, userAgent string) *LinkChecker {
	return &LinkChecker{
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
		userAgent:   userAgent,
	}
}

// Check returns one status per link, in input order.
func (lc *LinkChecker) Check(ctx context.Context, links []string) []models.LinkStatus {
	statuses := make([]models.LinkStatus, len(links))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lc.concurrency)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			statuses[i] = models.LinkStatus{URL: link, Status: lc.head(ctx, link)}
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

func (lc *LinkChecker) head(ctx context.Context, link string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return models.LinkStatusUnreachable
	}
	if lc.userAgent != "" {
		req.Header.Set("User-Agent", lc.userAgent)
	}
	resp, err := lc.client.Do(req)
	if err != nil {
		return models.LinkStatusUnreachable
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

// PageHealthService checks pages for console errors and broken links
type PageHealthService interface {
	CheckPage(ctx context.Context, probe PageProbe, pageURL string) models.PageLoadResult
	CheckPages(ctx context.Context, probe PageProbe, urls []string) *models.PageLoadReport
	WriteReport(report *models.PageLoadReport) (string, error)
}

// PageHealthServiceImpl implements PageHealthService
type PageHealthServiceImpl struct {
	config    *config.PageLoadConfig
	links     *LinkChecker
	logger    *zap.Logger
	knownByPg map[string][]models.WildcardPattern
	ignored   []models.WildcardPattern
}

// NewPageHealthService creates a page health service
func NewPageHealthService(cfg *config.PageLoadConfig, links *LinkChecker, logger *zap.Logger) PageHealthService {
	s := &PageHealthServiceImpl{
		config:    cfg,
		links:     links,
		logger:    logger,
		knownByPg: make(map[string][]models.WildcardPattern),
	}
	for page, patterns := range cfg.KnownIssues {
		for _, p := range patterns {
			s.knownByPg[page] = append(s.knownByPg[page], models.CompileWildcard(p))
		}
	}
	for _, p := range cfg.IgnoredLinks {
		s.ignored = append(s.ignored, models.CompileWildcard(p))
	}
	return s
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]`)

// CheckPage loads pageURL, collects its console errors and probes its links.
func (s *PageHealthServiceImpl) CheckPage(ctx context.Context, probe PageProbe, pageURL string) (res models.PageLoadResult) {
	res = models.PageLoadResult{URL: pageURL, StartTime: time.Now().UTC(), Status: "failed"}
	log := s.logger.With(zap.String("url", pageURL))
	defer func() {
		res.EndTime = time.Now().UTC()
		res.DurationMillis = res.EndTime.Sub(res.StartTime).Milliseconds()
	}()

	status, err := probe.Load(ctx, pageURL)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("page load failed: %v", err))
		return res
	}
	res.PageLoadStatus = status
	if status != http.StatusOK {
		res.Errors = append(res.Errors, fmt.Sprintf("page returned status %d", status))
		return res
	}
	if s.config.PageReady != "" {
		ok, err := probe.Has(ctx, s.config.PageReady)
		if err != nil || !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("page ready marker %s not found", s.config.PageReady))
			return res
		}
	}

	if s.config.ScreenshotDir != "" {
		name := unsafeFileChars.ReplaceAllString(strings.ToLower(strings.TrimPrefix(pageURL, "https://")), "_")
		for _, shot := range []struct {
			suffix   string
			fullPage bool
		}{{"", false}, {"_fullpage", true}} {
			path := filepath.Join(s.config.ScreenshotDir, name+shot.suffix+".png")
			if err := probe.Screenshot(path, shot.fullPage); err != nil {
				log.Debug("screenshot failed", zap.String("path", path), zap.Error(err))
				continue
			}
			res.Screenshots = append(res.Screenshots, path)
		}
	}

	res.CriticalErrors = CriticalConsoleErrors(probe.ConsoleErrors(), s.config.IgnoredConsolePatterns)

	hrefs, err := probe.Links(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to collect links: %v", err))
		return res
	}
	links := CheckableLinks(hrefs)
	res.LinkValidation.TotalLinks = len(links)
	s.classifyLinks(pageURL, s.links.Check(ctx, links), &res.LinkValidation)

	for _, e := range res.CriticalErrors {
		log.Warn("critical console error", zap.String("error", e))
	}
	for _, e := range res.LinkValidation.Errors404 {
		log.Warn("broken link", zap.String("link", e))
	}

	if len(res.CriticalErrors) <= s.config.MaxCriticalErrors && len(res.LinkValidation.Errors404) == 0 {
		res.Status = "passed"
	}
	return res
}

// CheckPages checks every URL in order on the same probe.
func (s *PageHealthServiceImpl) CheckPages(ctx context.Context, probe PageProbe, urls []string) *models.PageLoadReport {
	report := &models.PageLoadReport{RunID: uuid.NewString(), StartTime: time.Now().UTC()}
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		res := s.CheckPage(ctx, probe, u)
		s.logger.Info("page checked",
			zap.String("url", u),
			zap.String("status", res.Status),
			zap.Int("links", res.LinkValidation.TotalLinks),
			zap.Int("critical_errors", len(res.CriticalErrors)),
			zap.Int("errors_404", len(res.LinkValidation.Errors404)))
		report.Add(res)
	}
	report.EndTime = time.Now().UTC()
	return report
}

// WriteReport writes the report as JSON into the report dir and returns its path.
func (s *PageHealthServiceImpl) WriteReport(report *models.PageLoadReport) (string, error) {
	if err := os.MkdirAll(s.config.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	path := filepath.Join(s.config.ReportDir, "test-report-"+report.StartTime.Format("2006-01-02T15-04-05Z")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (s *PageHealthServiceImpl) classifyLinks(pageURL string, statuses []models.LinkStatus, v *models.LinkValidation) {
	var notFound []string
	for _, st := range statuses {
		switch st.Status {
		case http.StatusOK:
			v.ValidLinks++
		case http.StatusNotFound:
			notFound = append(notFound, st.String())
		case models.LinkStatusUnreachable:
			v.Errors999 = append(v.Errors999, st.String())
		}
	}

	known := s.knownByPg[pageURL]
	for _, line := range notFound {
		if matchesAny(known, line) {
			v.KnownIssuesFiltered++
			continue
		}
		if matchesAny(s.ignored, line) {
			continue
		}
		v.Errors404 = append(v.Errors404, line)
	}
}

func matchesAny(patterns []models.WildcardPattern, s string) bool {
	for _, p := range patterns {
		if p.Match(s) {
			return true
		}
	}
	return false
}
