package models

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Target is one top-level page under test. It is immutable during a run.
type Target struct {
	URL      string
	Country  string
	Category string
	// TabFilter limits the run to tabs with these titles. Empty means all tabs.
	TabFilter []string
	// CardFilter limits the run to these 1-based card positions. Empty means all cards.
	CardFilter []int
}

// Domain errors
var (
	ErrEmptyTargetURL   = errors.New("target URL cannot be empty")
	ErrInvalidTargetURL = errors.New("target URL must be an absolute http(s) URL")
	ErrInvalidUnitKey   = errors.New("invalid checkout unit key")
)

// NewTarget validates the URL and applies the default category.
func NewTarget(rawURL, country, category string) (*Target, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyTargetURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetURL, rawURL)
	}
	if category == "" {
		category = "plans"
	}
	return &Target{URL: rawURL, Country: strings.ToLower(country), Category: category}, nil
}

var unsafeSlugChars = regexp.MustCompile(`[^a-z0-9]`)

// Identity returns a filesystem-safe key for progress tracking. Distinct URLs
// or categories never share an identity.
func (t *Target) Identity() string {
	return unsafeSlugChars.ReplaceAllString(strings.ToLower(t.Category+"-"+t.URL), "-")
}

// WithinOrigin reports whether a location stays on the target page: same
// origin and the target path as prefix.
func (t *Target) WithinOrigin(location string) bool {
	base, err := url.Parse(t.URL)
	if err != nil {
		return false
	}
	loc, err := url.Parse(location)
	if err != nil {
		return false
	}
	return loc.Scheme == base.Scheme && loc.Host == base.Host && strings.HasPrefix(loc.Path, base.Path)
}

// IncludesTab reports whether the tab title passes the tab filter.
func (t *Target) IncludesTab(title string) bool {
	if len(t.TabFilter) == 0 {
		return true
	}
	title = strings.TrimSpace(title)
	for _, want := range t.TabFilter {
		if strings.EqualFold(strings.TrimSpace(want), title) {
			return true
		}
	}
	return false
}

// IncludesCard reports whether the zero-based card index passes the card filter.
func (t *Target) IncludesCard(index int) bool {
	if len(t.CardFilter) == 0 {
		return true
	}
	for _, pos := range t.CardFilter {
		if pos == index+1 {
			return true
		}
	}
	return false
}

// Tab is one pricing segment as discovered in the live document.
type Tab struct {
	Index int
	Title string
}

// Card is one merchandising unit within a tab. Price is the raw displayed text
// and is read fresh on every run.
type Card struct {
	Index       int
	ProductName string
	Price       string
	HasCheckout bool
	CTAText     string
}

// PriceOption is one selectable billing term inside a checkout modal.
type PriceOption struct {
	Index    int
	Price    string
	Selected bool
}

// CartTotal holds the price fields read from a cart page. Any one of them
// matching the option price is sufficient.
type CartTotal struct {
	Subtotal  string
	Total     string
	NextTotal string
}

// Values returns the non-empty cart fields in priority order.
func (c CartTotal) Values() []string {
	var out []string
	for _, v := range []string{c.Subtotal, c.Total, c.NextTotal} {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Matches reports whether any cart field equals the given price.
func (c CartTotal) Matches(price string) bool {
	for _, v := range c.Values() {
		if PricesEqual(price, v) {
			return true
		}
	}
	return false
}

// CheckoutUnit is the (tab, card) pair used for progress tracking and retries.
type CheckoutUnit struct {
	Tab  int
	Card int
}

// Key returns the persisted form "tab{i}-card{j}".
func (u CheckoutUnit) Key() string {
	return fmt.Sprintf("tab%d-card%d", u.Tab, u.Card)
}

func (u CheckoutUnit) String() string {
	return u.Key()
}

// ParseUnitKey parses the "tab{i}-card{j}" form.
func ParseUnitKey(key string) (CheckoutUnit, error) {
	var u CheckoutUnit
	if n, _ := fmt.Sscanf(key, "tab%d-card%d", &u.Tab, &u.Card); n != 2 {
		return CheckoutUnit{}, fmt.Errorf("%w: %q", ErrInvalidUnitKey, key)
	}
	// Round-tripping rejects trailing text and padded numbers.
	if u.Tab < 0 || u.Card < 0 || key != u.Key() {
		return CheckoutUnit{}, fmt.Errorf("%w: %q", ErrInvalidUnitKey, key)
	}
	return u, nil
}

// SurfaceKind names the classified outcome of invoking a card's checkout action.
type SurfaceKind string

// Checkout outcomes
const (
	SurfaceNewWindow   SurfaceKind = "new_window"
	SurfaceInPageModal SurfaceKind = "in_page_modal"
	SurfaceRedirect    SurfaceKind = "redirect"
)

// CardOutcome records what happened to a card during a run.
type CardOutcome string

// Card outcomes
const (
	OutcomeNoCheckoutLink CardOutcome = "no_checkout_link"
	OutcomeNewWindow      CardOutcome = CardOutcome(SurfaceNewWindow)
	OutcomeInPageModal    CardOutcome = CardOutcome(SurfaceInPageModal)
	OutcomeRedirect       CardOutcome = CardOutcome(SurfaceRedirect)
	OutcomeSkipped        CardOutcome = "skipped"
	OutcomeError          CardOutcome = "error"
)
