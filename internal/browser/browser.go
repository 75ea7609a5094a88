// Package browser implements document.Document and the page health probe on
// top of playwright-go.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
)

// Session owns the playwright driver and one browser process. Documents
// opened from it get their own browser context.
type Session struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	config    *config.BrowserConfig
	userAgent string
	logger    *zap.Logger
}

// Launch starts playwright and a Chromium instance. Browsers must already be
// installed (go run github.com/playwright-community/playwright-go/cmd/playwright install chromium).
func Launch(cfg *config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	s := &Session{pw: pw, browser: browser, config: cfg, logger: logger}
	if cfg.UserAgentSuffix != "" {
		base, err := s.defaultUserAgent()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.userAgent = base + " " + cfg.UserAgentSuffix
	}
	logger.Info("browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.String("version", browser.Version()),
		zap.String("user_agent", s.userAgent))
	return s, nil
}

// UserAgent returns the overridden user agent, or "" when the browser default is used.
func (s *Session) UserAgent() string {
	return s.userAgent
}

func (s *Session) defaultUserAgent() (string, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	ua, err := page.Evaluate("() => navigator.userAgent")
	if err != nil {
		return "", fmt.Errorf("failed to read user agent: %w", err)
	}
	agent, _ := ua.(string)
	return agent, nil
}

// newContext opens a browser context with the geo mock and URL blocking installed.
func (s *Session) newContext(country string) (playwright.BrowserContext, error) {
	opts := playwright.BrowserNewContextOptions{}
	if s.userAgent != "" {
		opts.UserAgent = playwright.String(s.userAgent)
	}
	bctx, err := s.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	for _, pattern := range s.config.BlockURLs {
		if err := bctx.Route(pattern, func(route playwright.Route) {
			if err := route.Abort(); err != nil {
				s.logger.Debug("failed to abort blocked request", zap.String("url", route.Request().URL()), zap.Error(err))
			}
		}); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("failed to block %s: %w", pattern, err)
		}
	}

	if s.config.GeoMockURL != "" && country != "" {
		body := fmt.Sprintf(`{"country":%q}`, country)
		if err := bctx.Route(s.config.GeoMockURL, func(route playwright.Route) {
			if err := route.Fulfill(playwright.RouteFulfillOptions{
				Status:      playwright.Int(200),
				ContentType: playwright.String("application/json"),
				Body:        body,
			}); err != nil {
				s.logger.Debug("failed to fulfil geo request", zap.Error(err))
			}
		}); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("failed to mock geo endpoint: %w", err)
		}
		s.logger.Debug("mocking geo location", zap.String("country", country))
	}

	return bctx, nil
}

// NewDocument opens a fresh browser context and page for one target run.
func (s *Session) NewDocument(country string) (*Page, error) {
	bctx, err := s.newContext(country)
	if err != nil {
		return nil, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &Page{page: page, bctx: bctx, ownsContext: true, config: s.config, logger: s.logger}, nil
}

// NewProbe opens a page health probe. The country is derived per URL on Load.
func (s *Session) NewProbe(navTimeout time.Duration) *Probe {
	return &Probe{session: s, navTimeout: navTimeout}
}

// Close shuts the browser and the driver down.
func (s *Session) Close() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func isTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}

// visible restricts a selector to rendered elements.
func visible(selector string) string {
	return strings.TrimSpace(selector) + " >> visible=true"
}
