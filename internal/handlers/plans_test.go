package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestPlansHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		catalog        *Catalog
		expectedStatus int
		checkContent   []string
		absentContent  []string
	}{
		{
			name:           "successful GET request",
			method:         http.MethodGet,
			catalog:        DefaultCatalog(),
			expectedStatus: http.StatusOK,
			checkContent: []string{
				`id="page-load-ok-milo"`,
				`aria-controls="panel-individuals"`,
				`<span is="inline-price" data-template="price">US$22.99/mo</span>`,
				`<a is="checkout-link" href="#buy-photoshop" data-modal="photoshop">`,
				`href="/store/checkout?card=pro"`,
				`href="/partner/checkout?card=teams" target="_blank"`,
				`id="panel-business" aria-labelledby="tab-business" hidden`,
			},
		},
		{
			name:   "card without checkout has no link",
			method: http.MethodGet,
			catalog: &Catalog{Tabs: []Tab{{ID: "t", Title: "T", Cards: []Card{
				{ID: "free", Name: "Free plan", Price: "Free"},
			}}}},
			expectedStatus: http.StatusOK,
			checkContent:   []string{"Free plan"},
			absentContent:  []string{`is="checkout-link"`},
		},
		{
			name:   "footer links and console errors",
			method: http.MethodGet,
			catalog: &Catalog{
				Links:         []string{"/missing.html"},
				ConsoleErrors: []string{"Uncaught TypeError: x is undefined"},
			},
			expectedStatus: http.StatusOK,
			checkContent:   []string{`<a href="/missing.html">`, `console.error("Uncaught TypeError: x is undefined")`},
		},
		{
			name:           "method not allowed - POST",
			method:         http.MethodPost,
			catalog:        DefaultCatalog(),
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewPlansHandler(tt.catalog, zap.NewNop())
			if err != nil {
				t.Fatalf("Failed to create handler: %v", err)
			}

			req := httptest.NewRequest(tt.method, "/creativecloud/plans.html", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			body := w.Body.String()
			for _, content := range tt.checkContent {
				if !strings.Contains(body, content) {
					t.Errorf("expected response to contain '%s'", content)
				}
			}
			for _, content := range tt.absentContent {
				if strings.Contains(body, content) {
					t.Errorf("expected response not to contain '%s'", content)
				}
			}
		})
	}
}

func TestGeoHandler_ServeHTTP(t *testing.T) {
	handler := NewGeoHandler("us")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"country":"us"}` {
		t.Errorf("unexpected body %s", got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/json/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}
