package extract

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes engine failures so the dispatcher can decide
// what is worth retrying.
type ErrorCategory string

const (
	ErrorTimeout      ErrorCategory = "timeout"
	ErrorBadData      ErrorCategory = "bad_data"
	ErrorEngineOutage ErrorCategory = "engine_outage"
	ErrorRateLimited  ErrorCategory = "rate_limited"
	ErrorInternal     ErrorCategory = "internal"
)

// EngineError wraps engine failures with normalized categorization.
type EngineError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("ocr engine [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("ocr engine [%s]: %s", e.Category, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Underlying }

// NewEngineError creates a normalized engine error. Timeouts, outages, and
// rate limits are retryable; bad data is not.
func NewEngineError(category ErrorCategory, message string, underlying error) *EngineError {
	retryable := category == ErrorTimeout ||
		category == ErrorEngineOutage ||
		category == ErrorRateLimited

	return &EngineError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is an engine error worth retrying.
func IsRetryable(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
