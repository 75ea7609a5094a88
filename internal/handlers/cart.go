package handlers

import (
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// CartHandler renders the cart reached from the checkout modal
type CartHandler struct {
	template *template.Template
	catalog  *Catalog
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(catalog *Catalog, logger *zap.Logger) (*CartHandler, error) {
	tmpl, err := parseTemplate("cart.html")
	if err != nil {
		return nil, err
	}

	return &CartHandler{
		template: tmpl,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// ServeHTTP handles the GET /store/cart?card=<id>&offer=<k> request
func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	card, ok := h.catalog.Card(query.Get("card"))
	if !ok {
		http.Error(w, "Unknown card", http.StatusNotFound)
		return
	}
	offer, err := strconv.Atoi(query.Get("offer"))
	if err != nil || offer < 0 || offer >= len(card.Offers) {
		http.Error(w, "Unknown offer", http.StatusNotFound)
		return
	}

	data := struct {
		Name      string
		Price     string
		Total     string
		NextTotal string
	}{
		Name:      card.Name,
		Price:     card.CartPriceOf(offer),
		Total:     card.Offers[offer].Total,
		NextTotal: card.Offers[offer].NextTotal,
	}
	if err := h.template.Execute(w, data); err != nil {
		h.logger.Error("failed to render cart", zap.String("card", card.ID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
