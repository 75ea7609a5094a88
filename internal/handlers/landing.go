package handlers

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

// LandingHandler renders the page a redirect or new-window checkout lands on.
// Redirect cards show their LandingText; other cards show name and price.
type LandingHandler struct {
	template *template.Template
	catalog  *Catalog
	logger   *zap.Logger
}

// NewLandingHandler creates a new LandingHandler
func NewLandingHandler(catalog *Catalog, logger *zap.Logger) (*LandingHandler, error) {
	tmpl, err := parseTemplate("landing.html")
	if err != nil {
		return nil, err
	}

	return &LandingHandler{
		template: tmpl,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// ServeHTTP handles the GET /store/checkout and /partner/checkout requests
func (h *LandingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	card, ok := h.catalog.Card(r.URL.Query().Get("card"))
	if !ok {
		http.Error(w, "Unknown card", http.StatusNotFound)
		return
	}

	text := card.LandingText
	if text == "" {
		text = card.Name + " " + card.Price
	}
	data := struct {
		Title string
		Text  string
	}{
		Title: card.Name,
		Text:  text,
	}
	if err := h.template.Execute(w, data); err != nil {
		h.logger.Error("failed to render landing page", zap.String("card", card.ID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
