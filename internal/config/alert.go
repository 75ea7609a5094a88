package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AlertConfig holds configuration for the failed-run webhook
type AlertConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Enabled reports whether a webhook is configured.
func (c *AlertConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// LoadAlertConfig loads alert configuration from environment variables
func LoadAlertConfig(getenv func(string) string) (*AlertConfig, error) {
	config := &AlertConfig{
		WebhookURL: strings.TrimSpace(getenv("ALERT_WEBHOOK_URL")),
	}

	if config.WebhookURL != "" {
		u, err := url.Parse(config.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("ALERT_WEBHOOK_URL must be an absolute http(s) URL")
		}
	}

	var err error
	if config.Timeout, err = durationOr(getenv, "ALERT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	return config, nil
}
