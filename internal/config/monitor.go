package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTargetURL is checked when TEST_URL is not set.
const DefaultTargetURL = "https://www.adobe.com/creativecloud/plans.html"

// Progress backends
const (
	ProgressBackendFile     = "file"
	ProgressBackendPostgres = "postgres"
)

// ScreenshotsOff disables screenshots when given as SCREENSHOT_DIR.
const ScreenshotsOff = "off"

// MonitorConfig holds configuration for a consistency check run
type MonitorConfig struct {
	TargetURL         string
	Country           string
	// CountryOverride is set when COUNTRY was given explicitly.
	CountryOverride   bool
	Tabs              []string
	Cards             []int
	RetryCount        int
	Category          string
	StateDir          string
	ReportDir         string
	ScreenshotDir     string
	Layout            string
	LayoutFile        string
	TargetsFile       string
	RunTimeout        time.Duration
	TargetConcurrency int
	ProgressBackend   string
}

// LoadMonitorConfig loads monitor configuration from environment variables
func LoadMonitorConfig(getenv func(string) string) (*MonitorConfig, error) {
	config := &MonitorConfig{
		TargetURL:     stringOr(getenv, "TEST_URL", DefaultTargetURL),
		Tabs:          splitList(getenv("TEST_TABS")),
		Category:      stringOr(getenv, "RUN_CATEGORY", "plans"),
		StateDir:      stringOr(getenv, "STATE_DIR", "test-results/.test-state"),
		ReportDir:     stringOr(getenv, "REPORT_DIR", "test-results"),
		ScreenshotDir: stringOr(getenv, "SCREENSHOT_DIR", "screenshots"),
		LayoutFile:    strings.TrimSpace(getenv("LAYOUT_FILE")),
		TargetsFile:   strings.TrimSpace(getenv("TARGETS_FILE")),
	}
	if config.ScreenshotDir == ScreenshotsOff {
		config.ScreenshotDir = ""
	}

	cards, err := parseCardPositions(getenv("TEST_CARDS"))
	if err != nil {
		return nil, err
	}
	config.Cards = cards

	if config.RetryCount, err = intOr(getenv, "RETRY_COUNT", 2, 0, 10); err != nil {
		return nil, err
	}
	if config.TargetConcurrency, err = intOr(getenv, "TARGET_CONCURRENCY", 1, 1, 16); err != nil {
		return nil, err
	}
	if config.RunTimeout, err = durationOr(getenv, "RUN_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	config.Country = strings.ToLower(strings.TrimSpace(getenv("COUNTRY")))
	config.CountryOverride = config.Country != ""
	if config.Country == "" {
		config.Country = CountryFromURL(config.TargetURL)
	}

	config.Layout = strings.ToLower(strings.TrimSpace(getenv("LAYOUT")))
	if config.Layout == "" {
		config.Layout = DefaultLayoutFor(config.Country)
	}
	if _, ok := builtinLayouts[config.Layout]; !ok && config.LayoutFile == "" {
		return nil, fmt.Errorf("LAYOUT must be %q or %q unless LAYOUT_FILE is set, got %q", LayoutMilo, LayoutDexter, config.Layout)
	}

	config.ProgressBackend = strings.ToLower(stringOr(getenv, "PROGRESS_BACKEND", ProgressBackendFile))
	if config.ProgressBackend != ProgressBackendFile && config.ProgressBackend != ProgressBackendPostgres {
		return nil, fmt.Errorf("PROGRESS_BACKEND must be %q or %q, got %q", ProgressBackendFile, ProgressBackendPostgres, config.ProgressBackend)
	}

	return config, nil
}

var localeSegment = regexp.MustCompile(`^([a-z]{2})(?:_[a-z]{2})?$`)

// CountryFromURL derives a country code from a locale prefix such as /uk/ or
// /ca_fr/. URLs without one are treated as US pages.
func CountryFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "us"
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		if m := localeSegment.FindStringSubmatch(strings.ToLower(seg)); m != nil {
			return m[1]
		}
		break
	}
	return "us"
}

// geoLocales are the locale prefixes the geo endpoint is mocked for on
// page health runs.
var geoLocales = map[string]bool{
	"ar": true, "br": true, "ca": true, "ca_fr": true, "cl": true, "co": true, "cr": true, "ec": true,
	"gt": true, "la": true, "mx": true, "pe": true, "pr": true, "africa": true, "at": true, "be_en": true,
	"be_fr": true, "be_nl": true, "bg": true, "ch_de": true, "ch_fr": true, "ch_it": true, "cis_en": true,
	"cis_ru": true, "cz": true, "de": true, "dk": true, "ee": true, "eg_ar": true, "eg_en": true, "es": true,
	"fi": true, "fr": true, "gr_el": true, "gr_en": true, "hu": true, "ie": true, "il_en": true, "il_he": true,
	"it": true, "kw_ar": true, "kw_en": true, "lt": true, "lu_de": true, "lu_en": true, "lu_fr": true,
	"lv": true, "mena_ar": true, "mena_en": true, "ng": true, "nl": true, "no": true, "pl": true, "pt": true,
	"qa_ar": true, "qa_en": true, "ro": true, "ru": true, "sa_ar": true, "sa_en": true, "se": true, "si": true,
	"sk": true, "tr": true, "ua": true, "uk": true, "za": true, "ae_ar": true, "ae_en": true, "au": true,
	"cn": true, "hk_en": true, "hk_zh": true, "id_en": true, "id_id": true, "in": true, "in_hi": true,
	"jp": true, "kr": true, "my_en": true, "my_ms": true, "nz": true, "ph_en": true, "ph_fil": true,
	"sg": true, "th_en": true, "th_th": true, "tw": true, "vn_en": true, "vn_vi": true,
}

// GeoCountry returns the country to report from the geo endpoint for a page,
// or "" when the page has no known locale prefix and should not be mocked.
func GeoCountry(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		seg = strings.ToLower(seg)
		if !geoLocales[seg] {
			return ""
		}
		country, _, _ := strings.Cut(seg, "_")
		return country
	}
	return ""
}

// DefaultLayoutFor picks the layout family served to a country.
func DefaultLayoutFor(country string) string {
	if country == "" || country == "us" {
		return LayoutMilo
	}
	return LayoutDexter
}

func parseCardPositions(raw string) ([]int, error) {
	var out []int
	for _, part := range splitList(raw) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("TEST_CARDS must list 1-based card positions, got %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
