package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TargetSpec describes one page to check. Empty fields fall back to the
// monitor configuration.
type TargetSpec struct {
	URL      string   `yaml:"url"`
	Country  string   `yaml:"country"`
	Category string   `yaml:"category"`
	Layout   string   `yaml:"layout"`
	Tabs     []string `yaml:"tabs"`
	Cards    []int    `yaml:"cards"`

	// CountryOverride is set when Country was given explicitly rather than
	// derived from the URL.
	CountryOverride bool `yaml:"-"`
}

// GeoCountry returns the country the geo endpoint reports for this target.
// An explicit country wins; otherwise the URL's locale prefix decides and
// pages without one are not mocked.
func (s TargetSpec) GeoCountry() string {
	if s.CountryOverride {
		return s.Country
	}
	return GeoCountry(s.URL)
}

type targetsFile struct {
	Targets []TargetSpec `yaml:"targets"`
}

// LoadTargets reads a YAML list of targets.
func LoadTargets(path string) ([]TargetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s lists no targets", path)
	}
	for i, t := range file.Targets {
		if strings.TrimSpace(t.URL) == "" {
			return nil, fmt.Errorf("target %d in %s has no url", i+1, path)
		}
		for _, pos := range t.Cards {
			if pos < 1 {
				return nil, fmt.Errorf("target %d in %s: card positions are 1-based, got %d", i+1, path, pos)
			}
		}
	}
	return file.Targets, nil
}

// TargetSpecs returns the targets to check: the targets file when one is
// configured, otherwise the single target described by the environment.
// Missing per-target fields are filled from the monitor configuration.
func (c *MonitorConfig) TargetSpecs() ([]TargetSpec, error) {
	if c.TargetsFile == "" {
		return []TargetSpec{{
			URL:             c.TargetURL,
			Country:         c.Country,
			CountryOverride: c.CountryOverride,
			Category:        c.Category,
			Layout:          c.Layout,
			Tabs:            c.Tabs,
			Cards:           c.Cards,
		}}, nil
	}

	specs, err := LoadTargets(c.TargetsFile)
	if err != nil {
		return nil, err
	}
	for i := range specs {
		s := &specs[i]
		s.CountryOverride = s.Country != ""
		if s.Country == "" {
			s.Country = CountryFromURL(s.URL)
		}
		s.Country = strings.ToLower(s.Country)
		if s.Category == "" {
			s.Category = c.Category
		}
		if s.Layout == "" {
			s.Layout = DefaultLayoutFor(s.Country)
		}
	}
	return specs, nil
}
