package models

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names the checkpoint a finding was recorded at.
type Stage string

// Finding stages
const (
	StageTab    Stage = "tab"
	StageCard   Stage = "card"
	StageOption Stage = "option"
)

// TagRetry marks findings caused by an unexpected error; the unit is retried on the next run.
const TagRetry = "[RETRY]"

// Finding is one recorded mismatch or failure. It is immutable once recorded.
type Finding struct {
	Unit    CheckoutUnit
	Stage   Stage
	Option  int // zero-based option index, -1 when not an option finding
	Kind    ErrorKind
	Message string
}

// NewCardFinding records a card-level finding.
func NewCardFinding(unit CheckoutUnit, kind ErrorKind, message string) Finding {
	return Finding{Unit: unit, Stage: StageCard, Option: -1, Kind: kind, Message: message}
}

// NewOptionFinding records a finding for one price option of a unit.
func NewOptionFinding(unit CheckoutUnit, option int, kind ErrorKind, message string) Finding {
	return Finding{Unit: unit, Stage: StageOption, Option: option, Kind: kind, Message: message}
}

// NewTabFinding records a finding that concerns a whole tab.
func NewTabFinding(tab int, kind ErrorKind, message string) Finding {
	return Finding{Unit: CheckoutUnit{Tab: tab, Card: -1}, Stage: StageTab, Option: -1, Kind: kind, Message: message}
}

// NewRetryFinding wraps an unexpected unit error; the message carries TagRetry.
func NewRetryFinding(unit CheckoutUnit, err error) Finding {
	kind := Unknown
	var me *MonitorError
	if errors.As(err, &me) {
		kind = me.Kind
	}
	return NewCardFinding(unit, kind, fmt.Sprintf("%s %v", TagRetry, err))
}

func (f Finding) String() string {
	var b strings.Builder
	switch f.Stage {
	case StageTab:
		fmt.Fprintf(&b, "[tab%d]", f.Unit.Tab)
	case StageOption:
		fmt.Fprintf(&b, "[%s option%d]", f.Unit.Key(), f.Option)
	default:
		fmt.Fprintf(&b, "[%s]", f.Unit.Key())
	}
	fmt.Fprintf(&b, " %s: %s", f.Kind, f.Message)
	return b.String()
}
