package handlers

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

// SegmentationHandler renders the offer picker loaded into the checkout modal
type SegmentationHandler struct {
	template *template.Template
	catalog  *Catalog
	logger   *zap.Logger
}

// NewSegmentationHandler creates a new SegmentationHandler
func NewSegmentationHandler(catalog *Catalog, logger *zap.Logger) (*SegmentationHandler, error) {
	tmpl, err := parseTemplate("segmentation.html")
	if err != nil {
		return nil, err
	}

	return &SegmentationHandler{
		template: tmpl,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// ServeHTTP handles the GET /store/segmentation?card=<id> request
func (h *SegmentationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	card, ok := h.catalog.Card(r.URL.Query().Get("card"))
	if !ok || len(card.Offers) == 0 {
		http.Error(w, "Unknown card", http.StatusNotFound)
		return
	}

	data := struct{ Card *Card }{Card: card}
	if err := h.template.Execute(w, data); err != nil {
		h.logger.Error("failed to render segmentation page", zap.String("card", card.ID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
