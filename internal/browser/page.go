package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document"
)

// scope resolves selectors relative to a page, an element or a frame.
type scope struct {
	locate func(selector string) playwright.Locator
}

func (s scope) QueryAll(ctx context.Context, selector string) ([]document.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locs, err := s.locate(visible(selector)).All()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	elems := make([]document.Element, 0, len(locs))
	for _, loc := range locs {
		elems = append(elems, newElement(loc))
	}
	return elems, nil
}

func (s scope) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (document.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := s.locate(visible(selector)).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	if isTimeout(err) {
		return nil, fmt.Errorf("%w: %s", document.ErrNotFound, selector)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", selector, err)
	}
	return newElement(loc), nil
}

// Element is a located node. The locator is positional and re-resolves on
// every call.
type Element struct {
	scope
	loc playwright.Locator
}

var _ document.Element = (*Element)(nil)

func newElement(loc playwright.Locator) *Element {
	return &Element{
		scope: scope{locate: func(selector string) playwright.Locator { return loc.Locator(selector) }},
		loc:   loc,
	}
}

func (e *Element) Click(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click(playwright.LocatorClickOptions{Timeout: millis(timeout)})
}

func (e *Element) Text(_ context.Context) (string, error) {
	text, err := e.loc.TextContent()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, error) {
	return e.loc.GetAttribute(name)
}

func (e *Element) TagName(_ context.Context) (string, error) {
	v, err := e.loc.Evaluate("el => el.tagName", nil)
	if err != nil {
		return "", err
	}
	tag, _ := v.(string)
	return strings.ToUpper(tag), nil
}

func (e *Element) Enabled(_ context.Context) (bool, error) {
	return e.loc.IsEnabled()
}

func (e *Element) Frame(_ context.Context) (document.Scope, error) {
	frame := e.loc.ContentFrame()
	return scope{locate: func(selector string) playwright.Locator { return frame.Locator(selector) }}, nil
}

func (e *Element) Screenshot(path string) error {
	_, err := e.loc.Screenshot(playwright.LocatorScreenshotOptions{Path: playwright.String(path)})
	return err
}

// Page implements document.Document over a playwright page.
type Page struct {
	page        playwright.Page
	bctx        playwright.BrowserContext
	ownsContext bool
	config      *config.BrowserConfig
	logger      *zap.Logger
}

var _ document.Document = (*Page)(nil)

func (p *Page) root() scope {
	return scope{locate: func(selector string) playwright.Locator { return p.page.Locator(selector) }}
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]document.Element, error) {
	return p.root().QueryAll(ctx, selector)
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (document.Element, error) {
	return p.root().WaitVisible(ctx, selector, timeout)
}

func (p *Page) URL() string {
	return p.page.URL()
}

// Goto loads url and waits for the network to go idle. An idle timeout is
// only logged: the document is usually usable by then.
func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   millis(p.config.NavTimeout),
	})
	if isTimeout(err) {
		p.logger.Warn("timeout waiting for network idle", zap.String("url", url))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   millis(p.config.NavTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	return nil
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{Timeout: millis(p.config.WaitTimeout)})
}

// ExpectNewContext runs action and waits up to timeout for it to open a new
// page. When none opens, the current page is given the same time to finish
// loading whatever the action started.
func (p *Page) ExpectNewContext(ctx context.Context, timeout time.Duration, action func() error) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actionErr error
	opened, err := p.bctx.ExpectPage(func() error {
		actionErr = action()
		return actionErr
	}, playwright.BrowserContextExpectPageOptions{Timeout: millis(timeout)})
	if actionErr != nil {
		return nil, actionErr
	}
	if err == nil {
		if lerr := opened.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateLoad,
			Timeout: millis(p.config.NavTimeout),
		}); lerr != nil {
			p.logger.Debug("new page did not finish loading", zap.String("url", opened.URL()), zap.Error(lerr))
		}
		return &Page{page: opened, bctx: p.bctx, config: p.config, logger: p.logger}, nil
	}
	if !isTimeout(err) {
		return nil, fmt.Errorf("failed waiting for new page: %w", err)
	}

	if lerr := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: millis(p.config.NavTimeout),
	}); lerr != nil {
		p.logger.Debug("page did not settle after checkout click", zap.Error(lerr))
	}
	return nil, nil
}

func (p *Page) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

// Close closes the page, and the browser context when the page owns it.
func (p *Page) Close() error {
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	if p.ownsContext {
		if err := p.bctx.Close(); err != nil {
			return fmt.Errorf("failed to close browser context: %w", err)
		}
	}
	return nil
}
