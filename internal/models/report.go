package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the gate consumed by alerting.
type RunStatus string

// Run statuses
const (
	RunStatusPassed RunStatus = "PASSED"
	RunStatusFailed RunStatus = "FAILED"
)

// TabResult summarizes one visited tab.
type TabResult struct {
	Index     int
	Title     string
	CardCount int
}

// CardResult summarizes one visited card.
type CardResult struct {
	Unit        CheckoutUnit
	TabTitle    string
	ProductName string
	Price       string
	CTAText     string
	Outcome     CardOutcome
	URL         string
	// Framed is set when the checkout modal was an iframe.
	Framed bool
}

// OptionResult summarizes one price option driven through to the cart.
type OptionResult struct {
	Unit   CheckoutUnit
	Index  int
	Price  string
	Cart   CartTotal
	Passed bool
}

// RunResult is everything one verifier pass observed.
type RunResult struct {
	TargetIdentity string
	Tabs           []TabResult
	Cards          []CardResult
	Options        []OptionResult
	Findings       []Finding
	SkippedUnits   int
}

// Passed reports whether the run produced no findings.
func (r *RunResult) Passed() bool {
	return len(r.Findings) == 0
}

// RunReport is the structured artifact written for downstream alerting.
type RunReport struct {
	RunID          string    `json:"runId"`
	Timestamp      time.Time `json:"timestamp"`
	TargetIdentity string    `json:"targetIdentity"`
	ErrorCount     int       `json:"errorCount"`
	Errors         []string  `json:"errors"`
	Status         RunStatus `json:"status"`
}

// NewRunReport renders the findings of a run into a report.
func NewRunReport(result *RunResult) *RunReport {
	errs := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		errs = append(errs, f.String())
	}
	status := RunStatusPassed
	if len(errs) > 0 {
		status = RunStatusFailed
	}
	return &RunReport{
		RunID:          uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		TargetIdentity: result.TargetIdentity,
		ErrorCount:     len(errs),
		Errors:         errs,
		Status:         status,
	}
}
