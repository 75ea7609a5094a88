package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
)

// scrollScript scrolls to the bottom in half-viewport steps so lazy content
// and its links are rendered before links are collected.
const scrollScript = `async () => {
	const delay = (ms) => new Promise(resolve => setTimeout(resolve, ms));
	const step = window.innerHeight / 2;
	for (let y = 0; y < document.body.scrollHeight; y += step) {
		window.scrollTo(0, y);
		await delay(250);
	}
	window.scrollTo(0, document.body.scrollHeight);
}`

const linksScript = `() => Array.from(document.links).map(l => l.href)`

// Probe implements the page health probe. Each Load opens a fresh page in a
// context mocked for the URL's locale.
type Probe struct {
	session    *Session
	navTimeout time.Duration

	bctx playwright.BrowserContext
	page playwright.Page

	mu      sync.Mutex
	console []string
}

// Load opens url and returns the main response status. A network-idle
// timeout counts as a 200: the page rendered but kept polling.
func (p *Probe) Load(ctx context.Context, pageURL string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.release()

	bctx, err := p.session.newContext(config.GeoCountry(pageURL))
	if err != nil {
		return 0, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return 0, fmt.Errorf("failed to open page: %w", err)
	}
	p.bctx, p.page = bctx, page

	p.mu.Lock()
	p.console = nil
	p.mu.Unlock()
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			p.record(msg.Text())
		}
	})
	page.OnPageError(func(err error) {
		p.record(err.Error())
	})

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   millis(p.navTimeout),
	})
	if isTimeout(err) {
		p.session.logger.Warn("timeout waiting for network idle", zap.String("url", pageURL))
		return http.StatusOK, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if resp == nil {
		return http.StatusOK, nil
	}
	return resp.Status(), nil
}

func (p *Probe) record(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, msg)
}

func (p *Probe) Has(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Probe) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.console...)
}

// Links scrolls the page to render lazy sections, then returns every anchor href.
func (p *Probe) Links(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := p.page.Evaluate(scrollScript); err != nil {
		p.session.logger.Debug("failed to scroll page", zap.Error(err))
	}
	v, err := p.page.Evaluate(linksScript)
	if err != nil {
		return nil, fmt.Errorf("failed to collect links: %w", err)
	}
	raw, _ := v.([]interface{})
	links := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok && s != "" {
			links = append(links, s)
		}
	}
	return links, nil
}

func (p *Probe) Screenshot(path string, fullPage bool) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	})
	return err
}

// Close releases the current page.
func (p *Probe) Close() error {
	p.release()
	return nil
}

func (p *Probe) release() {
	if p.bctx != nil {
		if err := p.bctx.Close(); err != nil {
			p.session.logger.Debug("failed to close probe context", zap.Error(err))
		}
	}
	p.bctx, p.page = nil, nil
}
