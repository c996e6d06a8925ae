// Package verification owns the session state machine that decides
// whether a customer may receive an age-restricted or
// prescription-controlled order. It sequences evidence intake, invokes
// the verifiers, aggregates the terminal result, and feeds the audit
// trail.
package verification

import (
	"crypto/rand"
	"encoding/base32"
	"time"

	"verity/internal/evidence/extract"
	"verity/internal/evidence/storage"
	id "verity/pkg/domain"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// IsTerminal reports whether the session can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Type selects which verifiers run at completion.
type Type string

const (
	TypeAge          Type = "age"
	TypePrescription Type = "prescription"
	TypeBoth         Type = "both"
)

// Valid reports whether t is a known verification type.
func (t Type) Valid() bool {
	return t == TypeAge || t == TypePrescription || t == TypeBoth
}

// NeedsAge reports whether the age verifier applies.
func (t Type) NeedsAge() bool { return t == TypeAge || t == TypeBoth }

// NeedsPrescription reports whether the prescription verifier applies.
func (t Type) NeedsPrescription() bool { return t == TypePrescription || t == TypeBoth }

// Side is which face of a physical document was captured.
type Side string

const (
	SideFront  Side = "front"
	SideBack   Side = "back"
	SideSingle Side = "single"
)

// Valid reports whether s is a known document side.
func (s Side) Valid() bool {
	return s == SideFront || s == SideBack || s == SideSingle
}

// Session is the unit of work for one order's compliance check.
// Exclusively owned by the session service; collaborators receive copies
// and never mutate it.
type Session struct {
	ID         id.SessionID
	OrderID    id.OrderID
	CustomerID id.CustomerID
	Type       Type
	Status     Status

	// MinimumAge is the strictest minimum among restricted line items,
	// resolved once at initiate.
	MinimumAge int

	// Documents holds evidence ids in arrival order.
	Documents []id.DocumentID

	SelfieRef         storage.Ref
	BiometricScore    *float64
	BiometricVerified bool

	// Result is set exactly once, when the session reaches completed or
	// failed.
	Result *Result

	// Code is the opaque payload presented at delivery handoff, also
	// rendered as a QR on the client.
	Code string

	CreatedAt time.Time
	ExpiresAt time.Time

	// Version guards updates: stores reject a write whose version does
	// not match the stored row, so concurrent uploads cannot lose data.
	Version int64
}

// Expired reports whether the deadline has passed for a non-terminal
// session.
func (s *Session) Expired(now time.Time) bool {
	return !s.Status.IsTerminal() && now.After(s.ExpiresAt)
}

// Clone returns a deep copy safe to hand to callers.
func (s *Session) Clone() *Session {
	copied := *s
	copied.Documents = append([]id.DocumentID(nil), s.Documents...)
	if s.BiometricScore != nil {
		score := *s.BiometricScore
		copied.BiometricScore = &score
	}
	if s.Result != nil {
		result := s.Result.Clone()
		copied.Result = &result
	}
	return &copied
}

// Result is the terminal decision for one session.
type Result struct {
	Verified             bool      `json:"verified"`
	AgeVerified          bool      `json:"age_verified"`
	IdentityVerified     bool      `json:"identity_verified"`
	PrescriptionVerified bool      `json:"prescription_verified"`
	FailureReasons       []string  `json:"failure_reasons,omitempty"`
	VerifiedAt           time.Time `json:"verified_at"`
}

// Clone returns a copy with its own reasons slice.
func (r Result) Clone() Result {
	copied := r
	copied.FailureReasons = append([]string(nil), r.FailureReasons...)
	return copied
}

// Document is one piece of uploaded evidence. Immutable once Extracted is
// set; a re-upload creates a new document, never an overwrite.
type Document struct {
	ID         id.DocumentID
	SessionID  id.SessionID
	Type       extract.DocumentType
	Side       Side
	StorageRef storage.Ref

	// Extracted is nil until the extraction task completes.
	Extracted *extract.Result

	// ExtractionFailed marks evidence whose extraction exhausted its
	// retries; verification treats it as absent.
	ExtractionFailed bool

	UploadedAt time.Time
}

// base32 without padding keeps codes short and phone-keyboard friendly.
var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCode returns a 16-character opaque verification code.
func NewCode() string {
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	return codeEncoding.EncodeToString(buf)
}
