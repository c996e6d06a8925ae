// Package domainerrors provides the coded errors services return to
// callers. Codes map onto HTTP statuses at the transport boundary
// (pkg/platform/httputil) and onto retry decisions inside services.
//
// Infrastructure facts (record missing in a store, stale cache entry) use
// pkg/platform/sentinel instead; services translate sentinels into these
// coded errors at the feature boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput covers malformed or missing required input; the
	// caller fixes the request and retries.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest covers semantically invalid requests (e.g. unknown
	// verification type).
	CodeBadRequest Code = "bad_request"

	// CodeNotFound covers unknown sessions, orders, or prescriptions.
	CodeNotFound Code = "not_found"

	// CodeNotApplicable is returned by initiate when the order triggers no
	// restriction requirements.
	CodeNotApplicable Code = "not_applicable"

	// CodeExpiredSession means the session deadline passed; the caller must
	// re-initiate.
	CodeExpiredSession Code = "expired_session"

	// CodeMissingPrerequisite covers ordering violations such as uploading
	// a selfie before any ID document.
	CodeMissingPrerequisite Code = "missing_prerequisite"

	// CodeMissingDocuments is returned by complete when required evidence
	// is absent. Recoverable: the session stays in progress.
	CodeMissingDocuments Code = "missing_documents"

	// CodeConflict covers lost optimistic-concurrency races on session
	// mutation.
	CodeConflict Code = "conflict"

	// CodeExternalService covers extraction/biometric engine failures that
	// survived internal retries.
	CodeExternalService Code = "external_service"

	// CodeInternal covers unexpected failures; details are suppressed at
	// the HTTP boundary.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a coded error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so transport mapping stays total.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}
