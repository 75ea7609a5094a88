package handlers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Checkout behaviours a fixture card can have
const (
	CheckoutModal    = "modal"
	CheckoutRedirect = "redirect"
	CheckoutWindow   = "window"
	CheckoutNone     = ""
)

// Offer is one price option of a modal card.
type Offer struct {
	Price string `yaml:"price"`
	// CartPrice is what the cart shows for this offer. Empty means Price.
	CartPrice string `yaml:"cart_price"`
	// Total and NextTotal are optional extra cart rows.
	Total     string `yaml:"total"`
	NextTotal string `yaml:"next_total"`
}

// Card is one merch card on the fixture plans page
type Card struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Price    string  `yaml:"price"`
	Checkout string  `yaml:"checkout"`
	Offers   []Offer `yaml:"offers"`
	// Selected lists the offers pre-selected when the modal opens.
	Selected []int `yaml:"selected"`
	// LandingText is the body of the redirect landing page.
	LandingText string `yaml:"landing_text"`
}

// Tab is one segment of the fixture plans page
type Tab struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Cards []Card `yaml:"cards"`
}

// Catalog is the content served by the fixture site
type Catalog struct {
	Tabs []Tab `yaml:"tabs"`
	// Links are extra anchors rendered in the footer, for page health runs.
	Links []string `yaml:"links"`
	// ConsoleErrors are logged with console.error on load.
	ConsoleErrors []string `yaml:"console_errors"`
}

// Card returns the card with the given id.
func (c *Catalog) Card(id string) (*Card, bool) {
	for i := range c.Tabs {
		for j := range c.Tabs[i].Cards {
			if c.Tabs[i].Cards[j].ID == id {
				return &c.Tabs[i].Cards[j], true
			}
		}
	}
	return nil, false
}

// Validate checks ids are unique and modal cards are usable.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)
	for _, tab := range c.Tabs {
		if tab.ID == "" {
			return fmt.Errorf("tab %q has no id", tab.Title)
		}
		for _, card := range tab.Cards {
			if card.ID == "" || seen[card.ID] {
				return fmt.Errorf("card %q needs a unique id", card.Name)
			}
			seen[card.ID] = true
			if card.Checkout == CheckoutModal && len(card.Offers) == 0 {
				return fmt.Errorf("modal card %s has no offers", card.ID)
			}
			for _, k := range card.Selected {
				if k < 0 || k >= len(card.Offers) {
					return fmt.Errorf("card %s selects offer %d of %d", card.ID, k, len(card.Offers))
				}
			}
		}
	}
	return nil
}

// CartPriceOf returns what the cart shows for offer k.
func (c *Card) CartPriceOf(k int) string {
	if k < 0 || k >= len(c.Offers) {
		return ""
	}
	if c.Offers[k].CartPrice != "" {
		return c.Offers[k].CartPrice
	}
	return c.Offers[k].Price
}

// IsSelected reports whether offer k is pre-selected.
func (c *Card) IsSelected(k int) bool {
	for _, s := range c.Selected {
		if s == k {
			return true
		}
	}
	return false
}

// LoadCatalog reads a catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &catalog, nil
}

// DefaultCatalog is a consistent two-tab catalog covering every checkout behaviour.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Tabs: []Tab{
			{
				ID:    "individuals",
				Title: "Individuals",
				Cards: []Card{
					{ID: "reader", Name: "Acrobat Reader", Price: "Free"},
					{
						ID:       "photoshop",
						Name:     "Photoshop",
						Price:    "US$22.99/mo",
						Checkout: CheckoutModal,
						Offers: []Offer{
							{Price: "US$22.99/mo", CartPrice: "US$22.99"},
							{Price: "US$263.88/yr", CartPrice: "US$263.88"},
						},
						Selected: []int{0},
					},
					{
						ID:          "pro",
						Name:        "Creative Cloud Pro",
						Price:       "US$69.99/mo",
						Checkout:    CheckoutRedirect,
						LandingText: "Creative Cloud Pro. Pay US$69.99/mo incl. tax, billed monthly.",
					},
				},
			},
			{
				ID:    "business",
				Title: "Business",
				Cards: []Card{
					{ID: "teams", Name: "Creative Cloud for teams", Price: "US$89.99/mo per license", Checkout: CheckoutWindow},
					{
						ID:       "acrobat-teams",
						Name:     "Acrobat Pro for teams",
						Price:    "US$23.99/mo",
						Checkout: CheckoutModal,
						Offers: []Offer{
							{Price: "US$23.99/mo"},
						},
						Selected: []int{0},
					},
				},
			},
		},
	}
}
