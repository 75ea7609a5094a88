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

// Verifier checks price consistency across card, checkout modal and cart for
// every unit of a target.
type Verifier interface {
	// Run traverses target on doc, skipping units progress has already seen
	// pass. Findings are returned in the result; the error is non-nil only
	// when the target could not be loaded or ctx ended.
	Run(ctx context.Context, doc document.Document, target *models.Target, progress ProgressStore) (*models.RunResult, error)
}

// VerifierImpl implements Verifier
type VerifierImpl struct {
	pages     *PlansPage
	navigator Navigator
	layout    *config.Layout
	timeouts  *config.BrowserConfig
	shots     *Screenshotter
	logger    *zap.Logger
}

// NewVerifier creates a new consistency verifier
func NewVerifier(pages *PlansPage, navigator Navigator, layout *config.Layout, timeouts *config.BrowserConfig, shots *Screenshotter, logger *zap.Logger) Verifier {
	return &VerifierImpl{
		pages:     pages,
		navigator: navigator,
		layout:    layout,
		timeouts:  timeouts,
		shots:     shots,
		logger:    logger,
	}
}

// run is the state of one traversal. The document is owned by it exclusively.
type run struct {
	*VerifierImpl
	doc      document.Document
	target   *models.Target
	progress ProgressStore
	result   *models.RunResult
	logger   *zap.Logger
}

// Run implements Verifier.
func (v *VerifierImpl) Run(ctx context.Context, doc document.Document, target *models.Target, progress ProgressStore) (*models.RunResult, error) {
	r := &run{
		VerifierImpl: v,
		doc:          doc,
		target:       target,
		progress:     progress,
		result:       &models.RunResult{TargetIdentity: target.Identity()},
		logger:       v.logger.With(zap.String("target", target.URL)),
	}

	if err := r.load(ctx); err != nil {
		return r.result, err
	}

	tabs, err := v.pages.ListTabs(ctx, doc)
	if err != nil {
		r.addFindings(models.NewTabFinding(0, kindOf(err), err.Error()))
		return r.result, nil
	}
	r.logger.Info("found tabs", zap.Int("count", len(tabs)))
	if len(tabs) == 0 {
		r.addFindings(models.NewTabFinding(0, models.StructuralNotFound, "found 0 tabs"))
		return r.result, nil
	}

	for _, tab := range tabs {
		if !target.IncludesTab(tab.Title) {
			r.logger.Debug("skipping filtered tab", zap.Int("tab", tab.Index), zap.String("title", tab.Title))
			continue
		}
		if err := r.verifyTab(ctx, tab); err != nil {
			return r.result, err
		}
	}

	r.logger.Info("run finished",
		zap.Int("cards", len(r.result.Cards)),
		zap.Int("options", len(r.result.Options)),
		zap.Int("skipped", r.result.SkippedUnits),
		zap.Int("findings", len(r.result.Findings)))
	return r.result, nil
}

func (r *run) load(ctx context.Context) error {
	if err := r.doc.Goto(ctx, r.target.URL); err != nil {
		return models.NewMonitorError(models.RunFatal, err, "failed to load target %s", r.target.URL)
	}
	if err := r.pages.WaitReady(ctx, r.doc); err != nil {
		return models.NewMonitorError(models.RunFatal, err, "target %s never became ready", r.target.URL)
	}
	return nil
}

func (r *run) verifyTab(ctx context.Context, tab models.Tab) error {
	log := r.logger.With(zap.Int("tab", tab.Index), zap.String("title", tab.Title))

	panel, err := r.pages.Activate(ctx, r.doc, tab.Index)
	if err != nil {
		log.Warn("failed to activate tab", zap.Error(err))
		r.addFindings(models.NewTabFinding(tab.Index, kindOf(err), err.Error()))
		return r.load(ctx)
	}
	cards, err := r.pages.ListCards(ctx, panel)
	if err != nil {
		r.addFindings(models.NewTabFinding(tab.Index, kindOf(err), err.Error()))
		return r.load(ctx)
	}
	r.result.Tabs = append(r.result.Tabs, models.TabResult{Index: tab.Index, Title: tab.Title, CardCount: len(cards)})
	log.Info("found cards", zap.Int("count", len(cards)))
	if len(cards) == 0 {
		r.addFindings(models.NewTabFinding(tab.Index, models.StructuralNotFound, fmt.Sprintf("found 0 cards in tab %q", tab.Title)))
		return nil
	}
	r.shots.Capture(r.doc, fmt.Sprintf("tab-%d", tab.Index+1))

	for j := range cards {
		if err := ctx.Err(); err != nil {
			return err
		}
		unit := models.CheckoutUnit{Tab: tab.Index, Card: j}
		if !r.target.IncludesCard(j) {
			continue
		}
		if r.progress.HasPassed(unit) {
			log.Info("skipping passed unit", zap.String("unit", unit.Key()))
			r.result.SkippedUnits++
			r.result.Cards = append(r.result.Cards, models.CardResult{Unit: unit, TabTitle: tab.Title, Outcome: models.OutcomeSkipped})
			continue
		}

		card := models.CardResult{Unit: unit, TabTitle: tab.Title}
		findings, err := r.verifyUnit(ctx, unit, &card)
		if err != nil {
			log.Warn("unit failed, reloading target", zap.String("unit", unit.Key()), zap.Error(err))
			card.Outcome = models.OutcomeError
			findings = append(findings, models.NewRetryFinding(unit, err))
		}
		r.result.Cards = append(r.result.Cards, card)
		r.addFindings(findings...)

		if err != nil {
			if lerr := r.load(ctx); lerr != nil {
				return lerr
			}
			continue
		}
		if len(findings) == 0 {
			if err := r.progress.MarkPassed(ctx, unit); err != nil {
				log.Error("failed to record passed unit", zap.String("unit", unit.Key()), zap.Error(err))
			}
		}
	}
	return nil
}

// verifyUnit checks one card. Returned findings are mismatches; a returned
// error means the unit could not be completed and the page state is unknown.
func (r *run) verifyUnit(ctx context.Context, unit models.CheckoutUnit, result *models.CardResult) ([]models.Finding, error) {
	label := fmt.Sprintf("tab-%d-card-%d", unit.Tab+1, unit.Card+1)
	log := r.logger.With(zap.String("unit", unit.Key()))

	card, err := r.locateCard(ctx, unit)
	if err != nil {
		return nil, err
	}
	result.ProductName = card.ProductName
	result.Price = card.Price
	result.CTAText = card.CTAText
	log.Info("checking card", zap.String("product", card.ProductName), zap.String("price", card.Price))
	r.shots.Capture(card.Element, label)

	if !card.HasCheckout {
		log.Info("card has no checkout link")
		result.Outcome = models.OutcomeNoCheckoutLink
		return nil, nil
	}

	surface, err := r.navigator.InvokeCheckout(ctx, r.doc, r.target, card.Checkout, label)
	if err != nil {
		return nil, err
	}
	result.Outcome = models.CardOutcome(surface.Kind())

	switch s := surface.(type) {
	case *NewWindowSurface:
		result.URL = s.URL
		return nil, nil
	case *RedirectSurface:
		result.URL = s.URL
		return r.verifyRedirect(ctx, unit, card, s)
	case *InPageModalSurface:
		result.Framed = s.Framed
		log.Info("checkout modal opened", zap.Bool("framed", s.Framed), zap.Int("options", len(s.Options)))
		return r.verifyModal(ctx, unit, card, s, label)
	}
	return nil, fmt.Errorf("unhandled checkout surface %T", surface)
}

func (r *run) locateCard(ctx context.Context, unit models.CheckoutUnit) (*CardHandle, error) {
	panel, err := r.pages.Activate(ctx, r.doc, unit.Tab)
	if err != nil {
		return nil, err
	}
	return r.pages.CardAt(ctx, panel, unit.Card)
}

func (r *run) verifyRedirect(ctx context.Context, unit models.CheckoutUnit, card *CardHandle, s *RedirectSurface) ([]models.Finding, error) {
	var findings []models.Finding
	switch {
	case strings.TrimSpace(card.Price) == "":
		r.logger.Warn("card has no price, skipping redirect check", zap.String("unit", unit.Key()), zap.String("url", s.URL))
	case !models.TextContainsPrice(s.PageText, card.Price):
		findings = append(findings, models.NewCardFinding(unit, models.PriceMismatch,
			fmt.Sprintf("card price %s not found on redirected page %s", card.Price, s.URL)))
	}
	if err := r.doc.GoBack(ctx); err != nil {
		return findings, fmt.Errorf("failed to navigate back from %s: %w", s.URL, err)
	}
	return findings, nil
}

func (r *run) verifyModal(ctx context.Context, unit models.CheckoutUnit, card *CardHandle, modal *InPageModalSurface, label string) ([]models.Finding, error) {
	log := r.logger.With(zap.String("unit", unit.Key()))
	var findings []models.Finding

	if modal.UnexpectedSource != "" {
		findings = append(findings, models.NewCardFinding(unit, models.StructuralNotFound,
			fmt.Sprintf("checkout iframe source %s is not under %s", modal.UnexpectedSource, r.layout.IframeSrcPrefix)))
	}

	switch n := len(modal.SelectedPrices); {
	case n == 0:
		findings = append(findings, models.NewCardFinding(unit, models.StructuralNotFound, "no pre-selected price option in checkout modal"))
	case n > 1:
		findings = append(findings, models.NewCardFinding(unit, models.PriceMismatch,
			fmt.Sprintf("%d price options pre-selected: %s", n, strings.Join(modal.SelectedPrices, ", "))))
	}
	if len(modal.SelectedPrices) > 0 {
		selected := modal.SelectedPrices[0]
		if !models.PricesEqual(selected, card.Price) {
			findings = append(findings, models.NewCardFinding(unit, models.PriceMismatch,
				tagged(models.PriceDirection(card.Price, selected), "selected option %s does not match card price %s", selected, card.Price)))
		}
	}

	total := len(modal.Options)
	for k := 0; k < total; k++ {
		if k > 0 {
			var err error
			if modal, err = r.reopenModal(ctx, unit, label); err != nil {
				return findings, err
			}
			if k >= len(modal.Options) {
				return findings, models.NewMonitorError(models.StructuralNotFound, nil, "checkout modal lost option %d", k)
			}
		}
		option := modal.Options[k]

		cart, err := r.checkoutOption(ctx, modal, k, fmt.Sprintf("%s-option-%d", label, k+1))
		if err != nil {
			return findings, err
		}
		passed := cart.Matches(option.Price)
		r.result.Options = append(r.result.Options, models.OptionResult{Unit: unit, Index: k, Price: option.Price, Cart: cart, Passed: passed})
		log.Info("checked price option",
			zap.Int("option", k),
			zap.String("price", option.Price),
			zap.String("subtotal", cart.Subtotal),
			zap.String("total", cart.Total),
			zap.String("next_total", cart.NextTotal),
			zap.Bool("passed", passed))

		if !passed {
			values := cart.Values()
			var reference string
			if len(values) > 0 {
				reference = values[0]
			}
			findings = append(findings, models.NewOptionFinding(unit, k, models.PriceMismatch,
				tagged(models.PriceDirection(option.Price, reference), "cart %s does not match option price %s", strings.Join(values, " / "), option.Price)))
		}

		if err := r.doc.GoBack(ctx); err != nil {
			return findings, fmt.Errorf("failed to navigate back from cart: %w", err)
		}
	}

	if err := modal.Close(ctx); err != nil {
		log.Debug("failed to close checkout modal", zap.Error(err))
	}
	return findings, nil
}

func (r *run) reopenModal(ctx context.Context, unit models.CheckoutUnit, label string) (*InPageModalSurface, error) {
	card, err := r.locateCard(ctx, unit)
	if err != nil {
		return nil, err
	}
	if !card.HasCheckout {
		return nil, models.NewMonitorError(models.StructuralNotFound, nil, "checkout link disappeared")
	}
	surface, err := r.navigator.InvokeCheckout(ctx, r.doc, r.target, card.Checkout, label)
	if err != nil {
		return nil, err
	}
	modal, ok := surface.(*InPageModalSurface)
	if !ok {
		return nil, models.NewMonitorError(models.StructuralNotFound, nil, "checkout reopened as %s instead of a modal", surface.Kind())
	}
	return modal, nil
}

func (r *run) checkoutOption(ctx context.Context, modal *InPageModalSurface, index int, label string) (models.CartTotal, error) {
	if err := modal.SelectOption(ctx, index); err != nil {
		return models.CartTotal{}, err
	}
	if err := modal.Continue(ctx); err != nil {
		return models.CartTotal{}, err
	}
	cart, err := r.readCart(ctx)
	r.shots.Capture(r.doc, label+"-cart")
	return cart, err
}

func (r *run) readCart(ctx context.Context) (models.CartTotal, error) {
	var cart models.CartTotal

	subtotal, err := r.doc.WaitVisible(ctx, r.layout.CartSubtotal, r.timeouts.NavTimeout)
	if err != nil {
		return cart, models.NewMonitorError(models.StructuralNotFound, err, "cart subtotal did not appear on %s", r.doc.URL())
	}
	if cart.Subtotal, err = subtotal.Text(ctx); err != nil {
		return cart, fmt.Errorf("failed to read cart subtotal: %w", err)
	}
	for _, f := range []struct {
		selector string
		dst      *string
	}{
		{r.layout.CartTotal, &cart.Total},
		{r.layout.CartNextTotal, &cart.NextTotal},
	} {
		if f.selector == "" {
			continue
		}
		if *f.dst, err = document.TextOf(ctx, r.doc, f.selector); err != nil {
			return cart, fmt.Errorf("failed to read cart total: %w", err)
		}
	}
	return cart, nil
}

func (r *run) addFindings(findings ...models.Finding) {
	for _, f := range findings {
		r.logger.Warn("finding", zap.String("finding", f.String()))
	}
	r.result.Findings = append(r.result.Findings, findings...)
}

func tagged(tag, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if tag == "" {
		return msg
	}
	return tag + " " + msg
}

func kindOf(err error) models.ErrorKind {
	var me *models.MonitorError
	if errors.As(err, &me) {
		return me.Kind
	}
	return models.Unknown
}
