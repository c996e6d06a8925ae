// Package compliance resolves jurisdiction-specific regulatory
// requirements and evaluates them against order and session evidence.
package compliance

import (
	"time"

	id "verity/pkg/domain"
)

// Requirement is one policy row keyed by (jurisdiction, productType).
// Rows with JurisdictionAll apply everywhere; a row for a specific
// jurisdiction replaces the matching wildcard row entirely during
// resolution, it is not merged field by field.
type Requirement struct {
	Jurisdiction        id.Jurisdiction `json:"jurisdiction"`
	ProductType         id.ProductType  `json:"product_type"`
	MinimumAge          int             `json:"minimum_age"`
	RequiresIDScan      bool            `json:"requires_id_scan"`
	RequiresBiometric   bool            `json:"requires_biometric"`
	RecordRetentionDays int             `json:"record_retention_days"`
	ReportingRequired   bool            `json:"reporting_required"`

	// AdditionalRequirements names checks from the check registry that
	// must hold for this row (e.g. "delivery-window").
	AdditionalRequirements []string `json:"additional_requirements,omitempty"`
}

// Check is one per-order compliance verdict. Created fresh on every
// evaluation, never mutated, only appended to the check log.
type Check struct {
	ID           id.CheckID
	OrderID      id.OrderID
	Jurisdiction id.Jurisdiction
	ProductTypes []id.ProductType
	Passed       bool
	Issues       []string
	Requirements []Requirement
	CheckedAt    time.Time
}

// SessionFacts is the slice of a verification session that compliance
// evaluation needs. Provided by the session manager; compliance never
// reads or mutates sessions directly.
type SessionFacts struct {
	DocumentCount        int
	BiometricVerified    bool
	PrescriptionVerified bool
	PrescriberVerified   bool
}

// DeliveryFacts carries what is known about the handoff at evaluation
// time. A zero At means the delivery slot is not yet scheduled; window
// checks bind the slot and pass until one exists. The boolean facts fail
// closed: an unknown driver license or signature commitment is an issue.
type DeliveryFacts struct {
	At                 time.Time
	DriverLicensed     bool
	SignatureCommitted bool
	MedicalCardOnFile  bool
}
