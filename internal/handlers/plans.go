package handlers

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

// PlansHandler renders the plans page of the fixture site
type PlansHandler struct {
	template *template.Template
	catalog  *Catalog
	logger   *zap.Logger
}

// NewPlansHandler creates a new PlansHandler
func NewPlansHandler(catalog *Catalog, logger *zap.Logger) (*PlansHandler, error) {
	tmpl, err := parseTemplate("plans.html")
	if err != nil {
		return nil, err
	}

	return &PlansHandler{
		template: tmpl,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// ServeHTTP handles the GET /creativecloud/plans.html request
func (h *PlansHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.template.Execute(w, h.catalog); err != nil {
		h.logger.Error("failed to render plans page", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
