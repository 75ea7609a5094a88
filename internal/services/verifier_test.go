package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap/zaptest"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document/doctest"
	"github.com/adyen/pricemonitor/internal/models"
)

const testTargetURL = "https://shop.example.com/creativecloud/plans.html"

type checkoutKind int

const (
	noCheckout checkoutKind = iota
	modalCheckout
	redirectCheckout
	windowCheckout
	brokenCheckout
)

type cardSpec struct {
	name         string
	price        string
	kind         checkoutKind
	options      []string
	selected     []int // pre-selected options, defaults to the first
	carts        []string
	redirectBody string
	inline       bool   // modal options live in the page instead of an iframe
	iframeSrc    string // defaults to the expected checkout source
}

type tabSpec struct {
	title string
	cards []cardSpec
}

func testLayout() *config.Layout {
	return &config.Layout{
		Name:                "test",
		PageReady:           "#ready",
		Tabs:                "tab",
		Card:                "card",
		CardTitle:           "h3",
		CardPrice:           ".price",
		CheckoutLink:        "a.checkout",
		Modal:               ".modal",
		ModalClose:          ".modal-close",
		IframeSrcPrefix:     "https://commerce.example.com/store/segmentation",
		PriceOption:         ".option",
		SelectedPriceOption: ".option.selected",
		Continue:            "button.continue",
		CartSubtotal:        ".subtotal",
		CartTotal:           ".total",
		CartNextTotal:       ".next",
	}
}

func testTimeouts() *config.BrowserConfig {
	return &config.BrowserConfig{
		NavTimeout:        time.Second,
		WaitTimeout:       time.Second,
		ClickTimeout:      time.Second,
		NewContextTimeout: time.Second,
	}
}

func cartURL(tab, card, option int) string {
	return fmt.Sprintf("https://commerce.example.com/cart?unit=tab%d-card%d&option=%d", tab, card, option)
}

// buildSite scripts a plans page: tabs switch panels through aria-controls,
// modal cards open an iframe whose continue button navigates to a per-option
// cart page.
func buildSite(tabs ...tabSpec) *doctest.Document {
	doc := doctest.New()
	root := doctest.El("body", "").With("#ready", doctest.El("div", ""))

	var panels, modals []*doctest.Node
	hideModals := func() {
		for _, m := range modals {
			m.Hidden = true
		}
	}
	root.With(".modal-close", doctest.El("button", "Close").Clicked(func(*doctest.Document) error {
		hideModals()
		return nil
	}))

	for i, tab := range tabs {
		i := i
		panel := doctest.El("div", "")
		panel.Hidden = i > 0
		panels = append(panels, panel)
		root.With(fmt.Sprintf("#panel-%d", i), panel)
		root.With("tab", doctest.El("button", tab.title).
			Attr("aria-controls", fmt.Sprintf("panel-%d", i)).
			Clicked(func(*doctest.Document) error {
				for k, p := range panels {
					p.Hidden = k != i
				}
				return nil
			}))

		for j, spec := range tab.cards {
			card := doctest.El("card", "").With("h3", doctest.El("h3", spec.name))
			if spec.price != "" {
				card.With(".price", doctest.El("span", spec.price))
			}
			panel.With("card", card)
			if spec.kind == noCheckout {
				continue
			}

			link := doctest.El("a", "Buy now")
			card.With("a.checkout", link)
			switch spec.kind {
			case modalCheckout:
				modal, open := buildModal(doc, spec, i, j)
				modals = append(modals, modal)
				root.With(".modal", modal)
				link.Clicked(func(*doctest.Document) error {
					hideModals()
					open()
					return nil
				})
			case redirectCheckout:
				dest := fmt.Sprintf("https://store.example.com/buy?unit=tab%d-card%d", i, j)
				doc.AddPage(&doctest.Page{URL: dest, Body: spec.redirectBody})
				link.Clicked(func(d *doctest.Document) error { return d.Navigate(dest) })
			case windowCheckout:
				link.Clicked(func(d *doctest.Document) error {
					d.Open("https://partner.example.com/checkout")
					return nil
				})
			case brokenCheckout:
				link.Clicked(func(*doctest.Document) error {
					return errors.New("element is not attached to the DOM")
				})
			}
		}
	}

	doc.AddPage(&doctest.Page{URL: testTargetURL, Root: root})
	return doc
}

func buildModal(doc *doctest.Document, spec cardSpec, tab, card int) (*doctest.Node, func()) {
	var modal, content *doctest.Node
	if spec.inline {
		modal = doctest.El("div", "")
		content = modal
	} else {
		src := spec.iframeSrc
		if src == "" {
			src = "https://commerce.example.com/store/segmentation?ms=COM"
		}
		modal = doctest.El("iframe", "").Attr("src", src)
		content = doctest.El("html", "")
		modal.Content = content
	}
	current := 0
	setSelected := func(idx []int) {
		delete(content.Children, ".option.selected")
		for _, k := range idx {
			content.With(".option.selected", doctest.El("span", spec.options[k]))
		}
		if len(idx) > 0 {
			current = idx[0]
		}
	}

	for k, price := range spec.options {
		k := k
		content.With(".option", doctest.El("label", price).Clicked(func(*doctest.Document) error {
			setSelected([]int{k})
			return nil
		}))
		var subtotal string
		if k < len(spec.carts) {
			subtotal = spec.carts[k]
		}
		doc.AddPage(&doctest.Page{
			URL:  cartURL(tab, card, k),
			Root: doctest.El("body", "").With(".subtotal", doctest.El("span", subtotal)),
		})
	}
	content.With("button.continue", doctest.El("button", "Continue").Clicked(func(d *doctest.Document) error {
		return d.Navigate(cartURL(tab, card, current))
	}))

	selected := spec.selected
	if selected == nil {
		selected = []int{0}
	}
	modal.Hidden = true
	return modal, func() {
		modal.Hidden = false
		setSelected(selected)
	}
}

func newTestVerifier(t *testing.T) Verifier {
	t.Helper()
	logger := zaptest.NewLogger(t)
	layout := testLayout()
	timeouts := testTimeouts()
	return NewVerifier(
		NewPlansPage(layout, timeouts, logger),
		NewNavigator(layout, timeouts, nil, logger),
		layout, timeouts, nil, logger,
	)
}

func newTestTarget(t *testing.T) *models.Target {
	t.Helper()
	target, err := models.NewTarget(testTargetURL, "us", "plans")
	if err != nil {
		t.Fatal(err)
	}
	return target
}

func newTestTracker(t *testing.T, repo ProgressRepository, target *models.Target) *ProgressTracker {
	t.Helper()
	tracker, err := LoadProgressTracker(context.Background(), repo, target.Identity(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return tracker
}

func TestVerifier_EndToEndScenario(t *testing.T) {
	doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{
		{name: "Acrobat Reader", price: "Free"},
		{
			name:    "Photoshop",
			price:   "US$9.99/mo",
			kind:    modalCheckout,
			options: []string{"$9.99/mo", "$99.99/yr"},
			carts:   []string{"$9.99", "$89.99"},
		},
	}})
	target := newTestTarget(t)
	repo := newMemoryRepository()
	tracker := newTestTracker(t, repo, target)

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(result.Findings), result.Findings)
	}
	f := result.Findings[0]
	if f.Unit != (models.CheckoutUnit{Tab: 0, Card: 1}) || f.Stage != models.StageOption || f.Option != 1 {
		t.Errorf("finding = %+v, want option 1 of tab0-card1", f)
	}
	if f.Kind != models.PriceMismatch || !strings.HasPrefix(f.Message, models.TagCardHigher) {
		t.Errorf("finding = %q, want %s price mismatch", f.String(), models.TagCardHigher)
	}

	if got := storedUnits(t, repo, target.Identity()); !cmp.Equal(got, []string{"tab0-card0"}) {
		t.Errorf("passed units = %v, want only tab0-card0", got)
	}

	wantOutcomes := []models.CardOutcome{models.OutcomeNoCheckoutLink, models.OutcomeInPageModal}
	var outcomes []models.CardOutcome
	for _, c := range result.Cards {
		outcomes = append(outcomes, c.Outcome)
	}
	if diff := cmp.Diff(wantOutcomes, outcomes); diff != "" {
		t.Errorf("card outcomes mismatch (-want +got):\n%s", diff)
	}
	if len(result.Options) != 2 || !result.Options[0].Passed || result.Options[1].Passed {
		t.Errorf("option results = %+v, want first passed and second failed", result.Options)
	}
	if result.Cards[0].Framed || !result.Cards[1].Framed {
		t.Errorf("framed = [%v %v], want only the modal card framed", result.Cards[0].Framed, result.Cards[1].Framed)
	}
}

func TestVerifier_InlineModal(t *testing.T) {
	// GIVEN a modal that renders its price options in the page, not in an iframe
	doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{
		{name: "Acrobat Reader", price: "Free"},
		{
			name:    "Photoshop",
			price:   "US$9.99/mo",
			kind:    modalCheckout,
			options: []string{"$9.99/mo", "$99.99/yr"},
			carts:   []string{"$9.99", "$89.99"},
			inline:  true,
		},
	}})
	target := newTestTarget(t)
	repo := newMemoryRepository()
	tracker := newTestTracker(t, repo, target)

	// WHEN the verifier runs
	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// THEN the options are checked the same way as in a framed modal
	want := []models.Finding{{
		Unit:   models.CheckoutUnit{Tab: 0, Card: 1},
		Stage:  models.StageOption,
		Option: 1,
		Kind:   models.PriceMismatch,
	}}
	if diff := cmp.Diff(want, result.Findings, cmpopts.IgnoreFields(models.Finding{}, "Message")); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(result.Findings[0].Message, models.TagCardHigher) {
		t.Errorf("finding = %q, want %s", result.Findings[0].Message, models.TagCardHigher)
	}
	if got := storedUnits(t, repo, target.Identity()); !cmp.Equal(got, []string{"tab0-card0"}) {
		t.Errorf("passed units = %v, want only tab0-card0", got)
	}
	card := result.Cards[1]
	if card.Outcome != models.OutcomeInPageModal || card.Framed {
		t.Errorf("card = %+v, want an unframed in-page modal", card)
	}
	if len(result.Options) != 2 || !result.Options[0].Passed || result.Options[1].Passed {
		t.Errorf("option results = %+v, want first passed and second failed", result.Options)
	}
}

func TestVerifier_UnexpectedIframeSource(t *testing.T) {
	// GIVEN a modal iframe served from somewhere other than the checkout
	doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{{
		name:      "Photoshop",
		price:     "US$9.99/mo",
		kind:      modalCheckout,
		options:   []string{"$9.99/mo"},
		carts:     []string{"$9.99"},
		iframeSrc: "https://ads.example.net/store/segmentation",
	}}})
	target := newTestTarget(t)
	repo := newMemoryRepository()
	tracker := newTestTracker(t, repo, target)

	// WHEN the verifier runs
	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// THEN the card is flagged and not marked passed, while its options are still checked
	want := []models.Finding{
		models.NewCardFinding(models.CheckoutUnit{Tab: 0, Card: 0}, models.StructuralNotFound,
			"checkout iframe source https://ads.example.net/store/segmentation is not under https://commerce.example.com/store/segmentation"),
	}
	if diff := cmp.Diff(want, result.Findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
	if got := storedUnits(t, repo, target.Identity()); len(got) != 0 {
		t.Errorf("passed units = %v, want none", got)
	}
	if len(result.Options) != 1 || !result.Options[0].Passed {
		t.Errorf("option results = %+v, want one passed option", result.Options)
	}
}

func TestIframeSourceMatches(t *testing.T) {
	const prefix = "https://commerce.example.com/store/segmentation"
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"absolute with query", "https://commerce.example.com/store/segmentation?ms=COM", true},
		{"host differs in case", "https://Commerce.Example.com/store/segmentation", true},
		{"relative path", "/store/segmentation?cli=creative", true},
		{"other host", "https://ads.example.net/store/segmentation", false},
		{"other path", "https://commerce.example.com/store/email", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iframeSourceMatches(tt.src, prefix); got != tt.want {
				t.Errorf("iframeSourceMatches(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestVerifier_UnitIsolation(t *testing.T) {
	doc := buildSite(
		tabSpec{title: "Individuals", cards: []cardSpec{{name: "Reader", price: "Free"}}},
		tabSpec{title: "Business", cards: []cardSpec{
			{name: "Reader", price: "Free"},
			{name: "Express", price: "$9.99/mo", kind: windowCheckout},
			{name: "Acrobat", price: "$22.99/mo", kind: brokenCheckout},
			{
				name:    "All Apps",
				price:   "$89.99/mo",
				kind:    modalCheckout,
				options: []string{"$89.99/mo"},
				carts:   []string{"$89.99"},
			},
		}},
	)
	target := newTestTarget(t)
	repo := newMemoryRepository()
	tracker := newTestTracker(t, repo, target)

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(result.Findings), result.Findings)
	}
	f := result.Findings[0]
	if f.Unit != (models.CheckoutUnit{Tab: 1, Card: 2}) || f.Kind != models.ClickFailed {
		t.Errorf("finding = %s, want CLICK_FAILED on tab1-card2", f)
	}
	if !strings.HasPrefix(f.Message, models.TagRetry) {
		t.Errorf("finding message = %q, want %s tag", f.Message, models.TagRetry)
	}

	var evaluated bool
	for _, c := range result.Cards {
		if c.Unit == (models.CheckoutUnit{Tab: 1, Card: 3}) && c.Outcome == models.OutcomeInPageModal {
			evaluated = true
		}
	}
	if !evaluated {
		t.Error("unit tab1-card3 was not evaluated after tab1-card2 failed")
	}

	want := []string{"tab0-card0", "tab1-card0", "tab1-card1", "tab1-card3"}
	if diff := cmp.Diff(want, storedUnits(t, repo, target.Identity())); diff != "" {
		t.Errorf("passed units mismatch (-want +got):\n%s", diff)
	}
	if len(doc.Gotos) != 2 {
		t.Errorf("target loaded %d times, want 2 (initial load and reload after failure)", len(doc.Gotos))
	}
}

func TestVerifier_SkipsPassedUnits(t *testing.T) {
	doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{
		{name: "Photoshop", price: "$22.99/mo", kind: brokenCheckout},
		{name: "Illustrator", price: "$22.99/mo", kind: brokenCheckout},
	}})
	target := newTestTarget(t)
	repo := newMemoryRepository()
	tracker := newTestTracker(t, repo, target)
	for _, u := range []models.CheckoutUnit{{Tab: 0, Card: 0}, {Tab: 0, Card: 1}} {
		if err := tracker.MarkPassed(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Passed() {
		t.Errorf("findings = %v, want none", result.Findings)
	}
	if result.SkippedUnits != 2 {
		t.Errorf("SkippedUnits = %d, want 2", result.SkippedUnits)
	}
}

func TestVerifier_Redirect(t *testing.T) {
	tests := []struct {
		name        string
		price       string
		body        string
		wantFinding bool
	}{
		{name: "price present", price: "US$54.99/mo", body: "Creative Cloud Pro US$54.99/mo incl. VAT", wantFinding: false},
		{name: "price in another format", price: "1.234,50 €/an", body: "Total 1 234,50 €", wantFinding: false},
		{name: "price absent", price: "US$54.99/mo", body: "Creative Cloud Pro US$59.99/mo", wantFinding: true},
		{name: "card without price", price: "", body: "anything", wantFinding: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{
				{name: "Pro", price: tt.price, kind: redirectCheckout, redirectBody: tt.body},
			}})
			target := newTestTarget(t)
			tracker := newTestTracker(t, newMemoryRepository(), target)

			result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := len(result.Findings) > 0; got != tt.wantFinding {
				t.Errorf("findings = %v, wantFinding %v", result.Findings, tt.wantFinding)
			}
			if result.Cards[0].Outcome != models.OutcomeRedirect {
				t.Errorf("Outcome = %q, want redirect", result.Cards[0].Outcome)
			}
			if doc.URL() != testTargetURL {
				t.Errorf("document left at %s, want back on the target", doc.URL())
			}
		})
	}
}

func TestVerifier_NewWindow(t *testing.T) {
	doc := buildSite(tabSpec{title: "Business", cards: []cardSpec{
		{name: "Teams", price: "$35.99/mo", kind: windowCheckout},
	}})
	target := newTestTarget(t)
	tracker := newTestTracker(t, newMemoryRepository(), target)

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Passed() {
		t.Errorf("findings = %v, want none", result.Findings)
	}
	card := result.Cards[0]
	if card.Outcome != models.OutcomeNewWindow || card.URL != "https://partner.example.com/checkout" {
		t.Errorf("card result = %+v, want new window to partner checkout", card)
	}
	if !tracker.HasPassed(models.CheckoutUnit{Tab: 0, Card: 0}) {
		t.Error("new window unit should be marked passed")
	}
}

func TestVerifier_ModalCardCheckpoint(t *testing.T) {
	tests := []struct {
		name     string
		card     string
		selected []int
		wantKind models.ErrorKind
		wantTag  string
	}{
		{name: "selected option cheaper than card", card: "$62.99/mo", selected: []int{0}, wantKind: models.PriceMismatch, wantTag: models.TagCardHigher},
		{name: "selected option dearer than card", card: "$42.99/mo", selected: []int{0}, wantKind: models.PriceMismatch, wantTag: models.TagCardLower},
		{name: "two options pre-selected", card: "$52.99/mo", selected: []int{0, 1}, wantKind: models.PriceMismatch},
		{name: "nothing pre-selected", card: "$52.99/mo", selected: []int{}, wantKind: models.StructuralNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := buildSite(tabSpec{title: "Individuals", cards: []cardSpec{{
				name:     "Pro",
				price:    tt.card,
				kind:     modalCheckout,
				options:  []string{"$52.99/mo", "$599.88/yr"},
				selected: tt.selected,
				carts:    []string{"$52.99", "$599.88"},
			}}})
			target := newTestTarget(t)
			tracker := newTestTracker(t, newMemoryRepository(), target)

			result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if len(result.Findings) != 1 {
				t.Fatalf("got %d findings, want 1: %v", len(result.Findings), result.Findings)
			}
			f := result.Findings[0]
			if f.Stage != models.StageCard || f.Kind != tt.wantKind {
				t.Errorf("finding = %s, want card-stage %s", f, tt.wantKind)
			}
			if tt.wantTag != "" && !strings.HasPrefix(f.Message, tt.wantTag) {
				t.Errorf("message = %q, want %s", f.Message, tt.wantTag)
			}
			if len(result.Options) != 2 {
				t.Errorf("checked %d options, want both", len(result.Options))
			}
			if tracker.HasPassed(models.CheckoutUnit{}) {
				t.Error("unit with a card finding must not be marked passed")
			}
		})
	}
}

func TestVerifier_TargetLoadFailure(t *testing.T) {
	doc := buildSite(tabSpec{title: "Individuals"})
	doc.GotoErr = func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") }
	target := newTestTarget(t)
	tracker := newTestTracker(t, newMemoryRepository(), target)

	_, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)

	var me *models.MonitorError
	if !errors.As(err, &me) || me.Kind != models.RunFatal {
		t.Fatalf("Run() error = %v, want RUN_FATAL", err)
	}
}

func TestVerifier_NoTabs(t *testing.T) {
	doc := buildSite()
	target := newTestTarget(t)
	tracker := newTestTracker(t, newMemoryRepository(), target)

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Findings) != 1 || result.Findings[0].Stage != models.StageTab {
		t.Errorf("findings = %v, want one tab finding", result.Findings)
	}
}

func TestVerifier_Filters(t *testing.T) {
	doc := buildSite(
		tabSpec{title: "Individuals", cards: []cardSpec{{name: "A", price: "$1"}, {name: "B", price: "$2"}}},
		tabSpec{title: "Business", cards: []cardSpec{{name: "C", price: "$3"}, {name: "D", price: "$4"}}},
	)
	target := newTestTarget(t)
	target.TabFilter = []string{"business"}
	target.CardFilter = []int{2}
	tracker := newTestTracker(t, newMemoryRepository(), target)

	result, err := newTestVerifier(t).Run(context.Background(), doc, target, tracker)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Cards) != 1 || result.Cards[0].Unit != (models.CheckoutUnit{Tab: 1, Card: 1}) {
		t.Errorf("cards = %+v, want only tab1-card1", result.Cards)
	}
}
