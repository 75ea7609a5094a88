package models

import "fmt"

// ErrorKind categorizes failures met while verifying a target.
type ErrorKind int

const (
	// Unknown represents an unclassified error.
	Unknown ErrorKind = iota
	// StructuralNotFound means an expected element never appeared within its timeout.
	StructuralNotFound
	// PriceMismatch is the expected verification failure.
	PriceMismatch
	// ClickFailed means a checkout affordance could not be activated.
	ClickFailed
	// RunFatal means the target could not be loaded at all.
	RunFatal
)

func (k ErrorKind) String() string {
	switch k {
	case StructuralNotFound:
		return "STRUCTURAL_NOT_FOUND"
	case PriceMismatch:
		return "PRICE_MISMATCH"
	case ClickFailed:
		return "CLICK_FAILED"
	case RunFatal:
		return "RUN_FATAL"
	default:
		return "UNKNOWN"
	}
}

// MonitorError carries a category, a message and the original cause.
type MonitorError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewMonitorError builds a MonitorError with a formatted message.
func NewMonitorError(kind ErrorKind, cause error, format string, args ...any) *MonitorError {
	return &MonitorError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *MonitorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MonitorError) Unwrap() error {
	return e.Cause
}
