package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultIgnoredConsolePatterns are console error substrings that never count as critical.
var DefaultIgnoredConsolePatterns = []string{"favicon", "analytics", "ads", "third-party"}

// PageLoadConfig holds configuration for the page health check
type PageLoadConfig struct {
	URLs                   []string
	IgnoredConsolePatterns []string
	// KnownIssues maps a page URL to "<status> <link>" wildcard patterns
	// that are expected to fail on that page.
	KnownIssues          map[string][]string
	IgnoredLinks         []string
	LinkCheckConcurrency int
	LinkTimeout          time.Duration
	MaxCriticalErrors    int
	ReportDir            string
	ScreenshotDir        string
	// PageReady must be present on every loaded page. Empty disables the check.
	PageReady string
}

// LoadPageLoadConfig loads page health check configuration from environment variables
func LoadPageLoadConfig(getenv func(string) string) (*PageLoadConfig, error) {
	config := &PageLoadConfig{
		ReportDir:     stringOr(getenv, "REPORT_DIR", "test-results"),
		ScreenshotDir: stringOr(getenv, "SCREENSHOT_DIR", "screenshots"),
		KnownIssues:   map[string][]string{},
		PageReady:     stringOr(getenv, "PAGE_READY", "div#page-load-ok-milo"),
	}
	if config.PageReady == "off" {
		config.PageReady = ""
	}
	if config.ScreenshotDir == ScreenshotsOff {
		config.ScreenshotDir = ""
	}

	source := stringOr(getenv, "PAGELOAD_URLS", "urls.yml")
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		config.URLs = []string{source}
	} else {
		if err := readYAML(source, &config.URLs); err != nil {
			return nil, fmt.Errorf("PAGELOAD_URLS: %w", err)
		}
	}
	if len(config.URLs) == 0 {
		return nil, fmt.Errorf("PAGELOAD_URLS lists no URLs")
	}
	if strings.EqualFold(getenv("ENVIRONMENT"), "stage") {
		for i, u := range config.URLs {
			config.URLs[i] = StageURL(u)
		}
	}

	config.IgnoredConsolePatterns = append([]string{}, DefaultIgnoredConsolePatterns...)
	if path := strings.TrimSpace(getenv("IGNORED_CONSOLE_FILE")); path != "" {
		var extra []string
		if err := readYAML(path, &extra); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("IGNORED_CONSOLE_FILE: %w", err)
		}
		config.IgnoredConsolePatterns = append(config.IgnoredConsolePatterns, extra...)
	}
	if path := strings.TrimSpace(getenv("KNOWN_ISSUES_FILE")); path != "" {
		if err := readYAML(path, &config.KnownIssues); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("KNOWN_ISSUES_FILE: %w", err)
		}
	}
	if path := strings.TrimSpace(getenv("IGNORED_LINKS_FILE")); path != "" {
		if err := readYAML(path, &config.IgnoredLinks); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("IGNORED_LINKS_FILE: %w", err)
		}
	}

	var err error
	if config.LinkCheckConcurrency, err = intOr(getenv, "LINK_CHECK_CONCURRENCY", 10, 1, 64); err != nil {
		return nil, err
	}
	if config.MaxCriticalErrors, err = intOr(getenv, "MAX_CRITICAL_ERRORS", 2, 0, 1000); err != nil {
		return nil, err
	}
	if config.LinkTimeout, err = durationOr(getenv, "LINK_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	return config, nil
}

// StageURL rewrites a production host to its stage counterpart.
func StageURL(u string) string {
	u = strings.Replace(u, "https://www.", "https://www.stage.", 1)
	return strings.Replace(u, "https://business.", "https://business.stage.", 1)
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
