package config

import (
	"strings"
	"time"
)

// DefaultGeoMockURL is the geo lookup endpoint answered locally with the configured country.
const DefaultGeoMockURL = "https://geo2.adobe.com/json/"

// DefaultBlockedURLs are aborted before any page is loaded.
var DefaultBlockedURLs = []string{"https://client.messaging.adobe.com/**"}

// BrowserConfig holds configuration for the automated browser
type BrowserConfig struct {
	Headless          bool
	UserAgentSuffix   string
	BlockURLs         []string
	GeoMockURL        string
	NavTimeout        time.Duration
	WaitTimeout       time.Duration
	ClickTimeout      time.Duration
	NewContextTimeout time.Duration
}

// LoadBrowserConfig loads browser configuration from environment variables
func LoadBrowserConfig(getenv func(string) string) (*BrowserConfig, error) {
	config := &BrowserConfig{
		UserAgentSuffix: strings.TrimSpace(getenv("USER_AGENT_SUFFIX")),
		BlockURLs:       splitList(getenv("BLOCK_URLS")),
		GeoMockURL:      stringOr(getenv, "GEO_MOCK_URL", DefaultGeoMockURL),
	}
	if len(config.BlockURLs) == 0 {
		config.BlockURLs = DefaultBlockedURLs
	}
	if config.GeoMockURL == "off" {
		config.GeoMockURL = ""
	}

	var err error
	if config.Headless, err = boolOr(getenv, "HEADLESS", true); err != nil {
		return nil, err
	}
	if config.NavTimeout, err = durationOr(getenv, "NAV_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if config.WaitTimeout, err = durationOr(getenv, "WAIT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.ClickTimeout, err = durationOr(getenv, "CLICK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if config.NewContextTimeout, err = durationOr(getenv, "NEW_CONTEXT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return config, nil
}
