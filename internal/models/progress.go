package models

import (
	"errors"
	"slices"
	"time"
)

// Progress errors
var (
	ErrProgressNotFound = errors.New("progress record not found")
	ErrCorruptRecord    = errors.New("progress record is corrupt")
)

// ProgressRecord is the persisted set of passed checkout units for one target identity.
type ProgressRecord struct {
	Identity    string    `json:"identity"`
	PassedUnits []string  `json:"passedUnits"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewProgressRecord returns an empty record stamped with the current time.
func NewProgressRecord(identity string) *ProgressRecord {
	return &ProgressRecord{
		Identity:    identity,
		PassedUnits: []string{},
		Timestamp:   time.Now().UTC(),
	}
}

// Has reports whether the unit is recorded as passed.
func (r *ProgressRecord) Has(unit CheckoutUnit) bool {
	return slices.Contains(r.PassedUnits, unit.Key())
}

// Add records the unit as passed. It returns false if the unit was already present.
func (r *ProgressRecord) Add(unit CheckoutUnit) bool {
	if r.Has(unit) {
		return false
	}
	r.PassedUnits = append(r.PassedUnits, unit.Key())
	return true
}

// Clone returns a copy that shares no state with r.
func (r *ProgressRecord) Clone() *ProgressRecord {
	c := *r
	c.PassedUnits = slices.Clone(r.PassedUnits)
	return &c
}

// Len returns the number of passed units.
func (r *ProgressRecord) Len() int {
	return len(r.PassedUnits)
}

// Compact drops malformed and duplicate keys, keeping first-seen order.
// It returns the number of keys dropped.
func (r *ProgressRecord) Compact() int {
	seen := make(map[string]struct{}, len(r.PassedUnits))
	kept := make([]string, 0, len(r.PassedUnits))
	for _, key := range r.PassedUnits {
		if _, err := ParseUnitKey(key); err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, key)
	}
	dropped := len(r.PassedUnits) - len(kept)
	r.PassedUnits = kept
	return dropped
}
