package handlers

import (
	"encoding/json"
	"net/http"
)

// GeoHandler answers the geo lookup the plans page makes on load. The
// monitor mocks this endpoint per target country.
type GeoHandler struct {
	country string
}

// NewGeoHandler creates a new GeoHandler reporting country
func NewGeoHandler(country string) *GeoHandler {
	return &GeoHandler{country: country}
}

// ServeHTTP handles the GET /json/ request
func (h *GeoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"country": h.country}); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
