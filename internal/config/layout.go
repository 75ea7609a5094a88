package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout holds the selectors that describe one family of plans pages.
type Layout struct {
	Name string `yaml:"name"`

	// PageReady, when set, must be attached after load or the run is fatal.
	PageReady string `yaml:"page_ready"`

	Tabs string `yaml:"tabs"`
	// TabPanel selects the active panel. When empty the panel is found
	// through the tab's aria-controls attribute.
	TabPanel string `yaml:"tab_panel"`

	Card         string `yaml:"card"`
	CardTitle    string `yaml:"card_title"`
	CardPrice    string `yaml:"card_price"`
	CheckoutLink string `yaml:"checkout_link"`

	Modal      string `yaml:"modal"`
	ModalClose string `yaml:"modal_close"`
	// IframeSrcPrefix is the expected src prefix of an iframe modal.
	IframeSrcPrefix string `yaml:"iframe_src_prefix"`

	PriceOption         string `yaml:"price_option"`
	SelectedPriceOption string `yaml:"selected_price_option"`
	Continue            string `yaml:"continue"`

	CartSubtotal  string `yaml:"cart_subtotal"`
	CartTotal     string `yaml:"cart_total"`
	CartNextTotal string `yaml:"cart_next_total"`
}

// Built-in layout names
const (
	LayoutMilo   = "milo"
	LayoutDexter = "dexter"
)

var builtinLayouts = map[string]Layout{
	LayoutMilo: {
		Name:                LayoutMilo,
		PageReady:           "div#page-load-ok-milo",
		Tabs:                `#tabs-plan button[role="tab"]`,
		Card:                "merch-card",
		CardTitle:           "h3",
		CardPrice:           `span[is="inline-price"][data-template="price"]`,
		CheckoutLink:        `a[is="checkout-link"]`,
		Modal:               ".milo-iframe iframe",
		ModalClose:          ".dialog-modal .dialog-close",
		IframeSrcPrefix:     "https://commerce.adobe.com/store/segmentation",
		PriceOption:         `div[data-testid="main-price"]`,
		SelectedPriceOption: `[data-testid="is-selected"] div[data-testid="main-price"]`,
		Continue:            `button[data-testid="primary-cta-button"]`,
		CartSubtotal:        `[class*="CartTotals__total-amount-plus-tax"] [data-testid="price-full-display"]`,
	},
	LayoutDexter: {
		Name:                LayoutDexter,
		Tabs:                `[data-name="segments"] [role="tab"]`,
		TabPanel:            `.is-Selected[role="tabpanel"]`,
		Card:                ":is(plans-card, .plans-card)",
		CardTitle:           "h3",
		CardPrice:           `span[data-wcs-type="price"]`,
		CheckoutLink:        ".dexter-Cta .spectrum-Button--cta",
		Modal:               ":is(div.ReactModalPortal .commerce-context-container, div.iframe iframe)",
		ModalClose:          "svg.close-button-modal, .dexter-CloseButton",
		IframeSrcPrefix:     "https://commerce.adobe.com/store/segmentation",
		PriceOption:         `.subscription-panel-offer-price [data-wcs-type="price"]`,
		SelectedPriceOption: `input[checked] + label [data-wcs-type="price"]`,
		Continue:            ".spectrum-Button--cta",
		CartSubtotal:        `[data-testid="cart-totals-subtotals-row"] [data-testid="price-full-display"]`,
		CartTotal:           `[class*="CartTotals__cart-totals-total-price"] [data-testid="price-full-display"]`,
		CartNextTotal:       `[data-testid="cart-totals-upcoming-dueNext-total"] [data-testid="price-full-display"]`,
	},
}

// LoadLayout returns the named built-in layout with any selectors from the
// YAML file at path layered on top. An empty path means no overrides. An
// unknown name is allowed only when the file provides a complete layout.
func LoadLayout(name, path string) (*Layout, error) {
	layout := builtinLayouts[name]
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read layout file: %w", err)
		}
		var override Layout
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to parse layout file %s: %w", path, err)
		}
		layout.merge(override)
	}
	if layout.Name == "" {
		layout.Name = name
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout %q: %w", layout.Name, err)
	}
	return &layout, nil
}

// Validate checks that every selector the verifier cannot do without is set.
func (l *Layout) Validate() error {
	required := []struct {
		field, value string
	}{
		{"tabs", l.Tabs},
		{"card", l.Card},
		{"card_price", l.CardPrice},
		{"checkout_link", l.CheckoutLink},
		{"modal", l.Modal},
		{"price_option", l.PriceOption},
		{"selected_price_option", l.SelectedPriceOption},
		{"continue", l.Continue},
		{"cart_subtotal", l.CartSubtotal},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("selector %s is required", r.field)
		}
	}
	return nil
}

func (l *Layout) merge(o Layout) {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&l.Name, o.Name)
	set(&l.PageReady, o.PageReady)
	set(&l.Tabs, o.Tabs)
	set(&l.TabPanel, o.TabPanel)
	set(&l.Card, o.Card)
	set(&l.CardTitle, o.CardTitle)
	set(&l.CardPrice, o.CardPrice)
	set(&l.CheckoutLink, o.CheckoutLink)
	set(&l.Modal, o.Modal)
	set(&l.ModalClose, o.ModalClose)
	set(&l.IframeSrcPrefix, o.IframeSrcPrefix)
	set(&l.PriceOption, o.PriceOption)
	set(&l.SelectedPriceOption, o.SelectedPriceOption)
	set(&l.Continue, o.Continue)
	set(&l.CartSubtotal, o.CartSubtotal)
	set(&l.CartTotal, o.CartTotal)
	set(&l.CartNextTotal, o.CartNextTotal)
}
