package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProgressRecord_AddIsIdempotent(t *testing.T) {
	record := NewProgressRecord("plans-example")
	unit := CheckoutUnit{Tab: 0, Card: 3}

	if record.Has(unit) {
		t.Fatal("new record should be empty")
	}
	if !record.Add(unit) {
		t.Error("first Add should report a change")
	}
	if record.Add(unit) {
		t.Error("second Add should be a no-op")
	}
	if !record.Has(unit) {
		t.Error("Has should be true after Add")
	}
	if record.Len() != 1 {
		t.Errorf("Len() = %d, want 1", record.Len())
	}
}

func TestProgressRecord_Compact(t *testing.T) {
	record := &ProgressRecord{
		PassedUnits: []string{"tab0-card0", "garbage", "tab0-card1", "tab0-card0", "tab2-card5"},
	}

	if dropped := record.Compact(); dropped != 2 {
		t.Errorf("Compact() dropped %d, want 2", dropped)
	}
	want := []string{"tab0-card0", "tab0-card1", "tab2-card5"}
	if diff := cmp.Diff(want, record.PassedUnits); diff != "" {
		t.Errorf("PassedUnits mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRunReport(t *testing.T) {
	result := &RunResult{
		TargetIdentity: "plans-example",
		Findings: []Finding{
			NewCardFinding(CheckoutUnit{Tab: 0, Card: 1}, PriceMismatch, "selected option $9.99 does not match card price $19.99"),
			NewOptionFinding(CheckoutUnit{Tab: 0, Card: 1}, 1, PriceMismatch, "[CARD_HIGHER] cart total $89.99 does not match option price $99.99/yr"),
		},
	}

	report := NewRunReport(result)

	if report.Status != RunStatusFailed {
		t.Errorf("Status = %q, want %q", report.Status, RunStatusFailed)
	}
	if report.ErrorCount != 2 || len(report.Errors) != 2 {
		t.Fatalf("ErrorCount = %d, len(Errors) = %d, want 2", report.ErrorCount, len(report.Errors))
	}
	if !strings.HasPrefix(report.Errors[1], "[tab0-card1 option1] PRICE_MISMATCH:") {
		t.Errorf("unexpected option finding rendering: %q", report.Errors[1])
	}
	if report.RunID == "" || report.Timestamp.IsZero() {
		t.Error("report should carry a run id and timestamp")
	}

	clean := NewRunReport(&RunResult{TargetIdentity: "plans-example"})
	if clean.Status != RunStatusPassed || clean.ErrorCount != 0 {
		t.Errorf("clean report = %+v, want PASSED with no errors", clean)
	}
}

func TestNewRetryFinding(t *testing.T) {
	unit := CheckoutUnit{Tab: 1, Card: 2}
	cause := NewMonitorError(ClickFailed, errors.New("element is not attached to the DOM"), "click checkout link")

	finding := NewRetryFinding(unit, cause)

	if finding.Kind != ClickFailed {
		t.Errorf("Kind = %v, want %v", finding.Kind, ClickFailed)
	}
	if !strings.HasPrefix(finding.Message, TagRetry) {
		t.Errorf("Message = %q, want %s prefix", finding.Message, TagRetry)
	}
	if got := finding.String(); !strings.Contains(got, "[tab1-card2] CLICK_FAILED") {
		t.Errorf("String() = %q", got)
	}

	plain := NewRetryFinding(unit, errors.New("boom"))
	if plain.Kind != Unknown {
		t.Errorf("Kind = %v, want Unknown for unclassified errors", plain.Kind)
	}
}
