package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document"
	"github.com/adyen/pricemonitor/internal/models"
)

// CardHandle is a card read from the live document. Checkout is nil when the
// card has no checkout affordance.
type CardHandle struct {
	models.Card
	Element  document.Element
	Checkout document.Element
}

// PlansPage enumerates tabs and cards of a plans page. Nothing is cached:
// every call re-queries the document by position.
type PlansPage struct {
	layout   *config.Layout
	timeouts *config.BrowserConfig
	logger   *zap.Logger
}

// NewPlansPage creates a traversal model over the given layout
func NewPlansPage(layout *config.Layout, timeouts *config.BrowserConfig, logger *zap.Logger) *PlansPage {
	return &PlansPage{layout: layout, timeouts: timeouts, logger: logger}
}

// WaitReady waits for the layout's page-ready marker, if it has one.
func (p *PlansPage) WaitReady(ctx context.Context, doc document.Document) error {
	if p.layout.PageReady == "" {
		return nil
	}
	if _, err := doc.WaitVisible(ctx, p.layout.PageReady, p.timeouts.NavTimeout); err != nil {
		return fmt.Errorf("page ready marker %s: %w", p.layout.PageReady, err)
	}
	return nil
}

// ListTabs returns every visible tab in document order.
func (p *PlansPage) ListTabs(ctx context.Context, doc document.Document) ([]models.Tab, error) {
	elems, err := doc.QueryAll(ctx, p.layout.Tabs)
	if err != nil {
		return nil, fmt.Errorf("failed to query tabs: %w", err)
	}
	tabs := make([]models.Tab, 0, len(elems))
	for i, el := range elems {
		title, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read tab %d title: %w", i, err)
		}
		tabs = append(tabs, models.Tab{Index: i, Title: strings.TrimSpace(title)})
	}
	return tabs, nil
}

// Activate switches to the tab at index and returns its panel.
func (p *PlansPage) Activate(ctx context.Context, doc document.Document, index int) (document.Scope, error) {
	elems, err := doc.QueryAll(ctx, p.layout.Tabs)
	if err != nil {
		return nil, fmt.Errorf("failed to query tabs: %w", err)
	}
	if index >= len(elems) {
		return nil, models.NewMonitorError(models.StructuralNotFound, nil, "tab %d not found, %d tabs present", index, len(elems))
	}
	tab := elems[index]
	if err := tab.Click(ctx, p.timeouts.ClickTimeout); err != nil {
		return nil, models.NewMonitorError(models.ClickFailed, err, "failed to activate tab %d", index)
	}

	selector := p.layout.TabPanel
	if selector == "" {
		id, err := tab.Attribute(ctx, "aria-controls")
		if err != nil || id == "" {
			return nil, models.NewMonitorError(models.StructuralNotFound, err, "tab %d has no aria-controls", index)
		}
		selector = "#" + id
	}
	panel, err := doc.WaitVisible(ctx, selector, p.timeouts.WaitTimeout)
	if err != nil {
		return nil, models.NewMonitorError(models.StructuralNotFound, err, "panel of tab %d did not appear", index)
	}
	return panel, nil
}

// ListCards reads every visible card of a panel.
func (p *PlansPage) ListCards(ctx context.Context, panel document.Scope) ([]*CardHandle, error) {
	elems, err := panel.QueryAll(ctx, p.layout.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	cards := make([]*CardHandle, 0, len(elems))
	for i, el := range elems {
		card, err := p.readCard(ctx, i, el)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// CardAt re-queries the panel and returns the card at index.
func (p *PlansPage) CardAt(ctx context.Context, panel document.Scope, index int) (*CardHandle, error) {
	elems, err := panel.QueryAll(ctx, p.layout.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	if index >= len(elems) {
		return nil, models.NewMonitorError(models.StructuralNotFound, nil, "card %d not found, %d cards present", index, len(elems))
	}
	return p.readCard(ctx, index, elems[index])
}

func (p *PlansPage) readCard(ctx context.Context, index int, el document.Element) (*CardHandle, error) {
	handle := &CardHandle{Card: models.Card{Index: index}, Element: el}

	var err error
	if p.layout.CardTitle != "" {
		if handle.ProductName, err = document.TextOf(ctx, el, p.layout.CardTitle); err != nil {
			return nil, fmt.Errorf("failed to read card %d title: %w", index, err)
		}
	}
	if handle.Price, err = document.TextOf(ctx, el, p.layout.CardPrice); err != nil {
		return nil, fmt.Errorf("failed to read card %d price: %w", index, err)
	}

	checkout, err := document.First(ctx, el, p.layout.CheckoutLink)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return handle, nil
	case err != nil:
		return nil, fmt.Errorf("failed to query card %d checkout link: %w", index, err)
	}
	handle.Checkout = checkout
	handle.HasCheckout = true
	if handle.CTAText, err = checkout.Text(ctx); err != nil {
		p.logger.Debug("failed to read checkout link text", zap.Int("card", index), zap.Error(err))
	}
	return handle, nil
}
