package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document"
	"github.com/adyen/pricemonitor/internal/models"
)

// CheckoutSurface is what activating a checkout link produced. It is one of
// *NewWindowSurface, *InPageModalSurface or *RedirectSurface.
type CheckoutSurface interface {
	Kind() models.SurfaceKind
	checkoutSurface()
}

// NewWindowSurface means the link opened a new browsing context. The context
// is already closed.
type NewWindowSurface struct {
	URL string
}

func (*NewWindowSurface) Kind() models.SurfaceKind { return models.SurfaceNewWindow }
func (*NewWindowSurface) checkoutSurface()         {}

// RedirectSurface means the page navigated away from the target.
type RedirectSurface struct {
	URL      string
	PageText string
}

func (*RedirectSurface) Kind() models.SurfaceKind { return models.SurfaceRedirect }
func (*RedirectSurface) checkoutSurface()         {}

// InPageModalSurface is a checkout modal opened over the target page. Its
// content is either an inline subtree or an iframe document.
type InPageModalSurface struct {
	Options        []models.PriceOption
	SelectedPrices []string
	// Framed is set when the content lives in an iframe.
	Framed bool
	// UnexpectedSource holds the iframe src when it is not the checkout
	// source the layout expects.
	UnexpectedSource string

	page     document.Scope
	content  document.Scope
	layout   *config.Layout
	timeouts *config.BrowserConfig
}

func (*InPageModalSurface) Kind() models.SurfaceKind { return models.SurfaceInPageModal }
func (*InPageModalSurface) checkoutSurface()         {}

// SelectOption clicks the price option at index.
func (s *InPageModalSurface) SelectOption(ctx context.Context, index int) error {
	elems, err := s.content.QueryAll(ctx, s.layout.PriceOption)
	if err != nil {
		return fmt.Errorf("failed to query price options: %w", err)
	}
	if index >= len(elems) {
		return models.NewMonitorError(models.StructuralNotFound, nil, "price option %d not found, %d present", index, len(elems))
	}
	if err := elems[index].Click(ctx, s.timeouts.ClickTimeout); err != nil {
		return models.NewMonitorError(models.ClickFailed, err, "failed to select price option %d", index)
	}
	return nil
}

// Continue waits for the continue action to become enabled and activates it.
func (s *InPageModalSurface) Continue(ctx context.Context) error {
	button, err := s.content.WaitVisible(ctx, s.layout.Continue, s.timeouts.WaitTimeout)
	if err != nil {
		return models.NewMonitorError(models.StructuralNotFound, err, "continue button did not appear")
	}
	if err := document.WaitEnabled(ctx, button, s.timeouts.WaitTimeout); err != nil {
		return models.NewMonitorError(models.StructuralNotFound, err, "continue button never became enabled")
	}
	if err := button.Click(ctx, s.timeouts.ClickTimeout); err != nil {
		return models.NewMonitorError(models.ClickFailed, err, "failed to continue to cart")
	}
	return nil
}

// Close clicks the modal's close control if one is visible.
func (s *InPageModalSurface) Close(ctx context.Context) error {
	if s.layout.ModalClose == "" {
		return nil
	}
	elems, err := s.page.QueryAll(ctx, s.layout.ModalClose)
	if err != nil || len(elems) == 0 {
		return err
	}
	return elems[0].Click(ctx, s.timeouts.ClickTimeout)
}

func (s *InPageModalSurface) load(ctx context.Context) error {
	if _, err := s.content.WaitVisible(ctx, s.layout.PriceOption, s.timeouts.WaitTimeout); err != nil {
		return models.NewMonitorError(models.StructuralNotFound, err, "no price options in checkout modal")
	}
	if _, err := s.content.WaitVisible(ctx, s.layout.Continue, s.timeouts.WaitTimeout); err != nil {
		return models.NewMonitorError(models.StructuralNotFound, err, "no continue button in checkout modal")
	}

	selected, err := s.content.QueryAll(ctx, s.layout.SelectedPriceOption)
	if err != nil {
		return fmt.Errorf("failed to query selected price option: %w", err)
	}
	for _, el := range selected {
		text, err := el.Text(ctx)
		if err != nil {
			return fmt.Errorf("failed to read selected price option: %w", err)
		}
		s.SelectedPrices = append(s.SelectedPrices, strings.TrimSpace(text))
	}

	options, err := s.content.QueryAll(ctx, s.layout.PriceOption)
	if err != nil {
		return fmt.Errorf("failed to query price options: %w", err)
	}
	for i, el := range options {
		text, err := el.Text(ctx)
		if err != nil {
			return fmt.Errorf("failed to read price option %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		s.Options = append(s.Options, models.PriceOption{
			Index:    i,
			Price:    text,
			Selected: slices.Contains(s.SelectedPrices, text),
		})
	}
	return nil
}

// Navigator drives a card's checkout link and classifies the outcome
type Navigator interface {
	InvokeCheckout(ctx context.Context, doc document.Document, target *models.Target, link document.Element, label string) (CheckoutSurface, error)
}

// NavigatorImpl implements Navigator
type NavigatorImpl struct {
	layout   *config.Layout
	timeouts *config.BrowserConfig
	shots    *Screenshotter
	logger   *zap.Logger
}

// NewNavigator creates a new checkout navigator
func NewNavigator(layout *config.Layout, timeouts *config.BrowserConfig, shots *Screenshotter, logger *zap.Logger) Navigator {
	return &NavigatorImpl{layout: layout, timeouts: timeouts, shots: shots, logger: logger}
}

// InvokeCheckout clicks link and waits a bounded time for a new context. A
// new context is a NewWindow; otherwise a location still on the target page
// is an InPageModal and anything else a Redirect. A failed click is a
// ClickFailed error.
func (n *NavigatorImpl) InvokeCheckout(ctx context.Context, doc document.Document, target *models.Target, link document.Element, label string) (CheckoutSurface, error) {
	opened, err := doc.ExpectNewContext(ctx, n.timeouts.NewContextTimeout, func() error {
		return link.Click(ctx, n.timeouts.ClickTimeout)
	})
	if err != nil {
		return nil, models.NewMonitorError(models.ClickFailed, err, "failed to click checkout link")
	}

	if opened != nil {
		surface := &NewWindowSurface{URL: opened.URL()}
		n.shots.Capture(opened, label+"-new-page")
		if err := opened.Close(); err != nil {
			n.logger.Warn("failed to close new window", zap.String("url", surface.URL), zap.Error(err))
		}
		n.logger.Info("checkout opened a new window", zap.String("url", surface.URL))
		return surface, nil
	}

	location := doc.URL()
	if target.WithinOrigin(location) {
		n.shots.Capture(doc, label+"-modal")
		modal, err := n.openModal(ctx, doc)
		if err != nil {
			return nil, err
		}
		return modal, nil
	}

	n.shots.Capture(doc, label+"-redirected")
	text, err := doc.BodyText(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read redirected page %s: %w", location, err)
	}
	n.logger.Info("checkout redirected", zap.String("url", location))
	return &RedirectSurface{URL: location, PageText: text}, nil
}

func (n *NavigatorImpl) openModal(ctx context.Context, doc document.Document) (*InPageModalSurface, error) {
	modal, err := doc.WaitVisible(ctx, n.layout.Modal, n.timeouts.WaitTimeout)
	if err != nil {
		return nil, models.NewMonitorError(models.StructuralNotFound, err, "checkout modal did not appear")
	}

	surface := &InPageModalSurface{page: doc, content: modal, layout: n.layout, timeouts: n.timeouts}

	tag, err := modal.TagName(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect checkout modal: %w", err)
	}
	if strings.EqualFold(tag, "IFRAME") {
		surface.Framed = true
		if n.layout.IframeSrcPrefix != "" {
			src, _ := modal.Attribute(ctx, "src")
			if !iframeSourceMatches(src, n.layout.IframeSrcPrefix) {
				n.logger.Warn("unexpected checkout iframe source", zap.String("src", src), zap.String("want_prefix", n.layout.IframeSrcPrefix))
				surface.UnexpectedSource = src
			}
		}
		frame, err := modal.Frame(ctx)
		if err != nil {
			return nil, models.NewMonitorError(models.StructuralNotFound, err, "checkout iframe has no content")
		}
		surface.content = frame
	}

	if err := surface.load(ctx); err != nil {
		return nil, err
	}
	return surface, nil
}

// iframeSourceMatches reports whether src points at the checkout path of
// prefix. A relative src is matched on its path only.
func iframeSourceMatches(src, prefix string) bool {
	want, err := url.Parse(prefix)
	if err != nil {
		return strings.HasPrefix(src, prefix)
	}
	got, err := url.Parse(strings.TrimSpace(src))
	if err != nil || src == "" {
		return false
	}
	if got.Host != "" && want.Host != "" && !strings.EqualFold(got.Host, want.Host) {
		return false
	}
	return strings.HasPrefix(got.Path, want.Path)
}
