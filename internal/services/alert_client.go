package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/models"
)

// AlertClient delivers failed-run reports to an external alerting endpoint
type AlertClient interface {
	SendReport(ctx context.Context, report *models.RunReport) error
}

// HTTPAlertClient implements AlertClient by POSTing JSON to a webhook
type HTTPAlertClient struct {
	config     *config.AlertConfig
	httpClient *http.Client
}

// NewAlertClient creates a new webhook alert client
func NewAlertClient(cfg *config.AlertConfig) AlertClient {
	return &HTTPAlertClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SendReport posts the report to the configured webhook
func (c *HTTPAlertClient) SendReport(ctx context.Context, report *models.RunReport) error {
	// Marshal request
	reqBody, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Run-ID", report.RunID)

	// Send request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
