// Package extract wraps the external OCR engine and turns raw document
// bytes into structured field sets. The engine produces raw text and a
// confidence score; a per-document-type parser registry turns that text
// into Fields. New document types are registered at startup, not wired into
// a central switch.
package extract

import (
	"context"
	"time"
)

// DocumentType is the fixed enumeration of evidence documents.
type DocumentType string

const (
	DocDriversLicense DocumentType = "drivers_license"
	DocPassport       DocumentType = "passport"
	DocStateID        DocumentType = "state_id"
	DocPrescription   DocumentType = "prescription"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocDriversLicense, DocPassport, DocStateID, DocPrescription:
		return true
	}
	return false
}

// IsIdentity reports whether t can anchor an identity/biometric check.
func (t DocumentType) IsIdentity() bool {
	switch t {
	case DocDriversLicense, DocPassport, DocStateID:
		return true
	}
	return false
}

// SecurityFeature names a physical anti-forgery signal the engine can
// detect on identity documents.
type SecurityFeature string

const (
	FeatureHologram   SecurityFeature = "hologram"
	FeatureUVMarkers  SecurityFeature = "uv_markers"
	FeatureMicroprint SecurityFeature = "microprint"
	FeatureRaisedText SecurityFeature = "raised_text"
)

// Fields is the structured output of extraction. Identity documents fill
// the top block; prescriptions fill the bottom block. Zero values mean the
// field was not found in the scan.
type Fields struct {
	FullName       string    `json:"full_name,omitempty"`
	DateOfBirth    time.Time `json:"date_of_birth,omitempty"`
	DocumentNumber string    `json:"document_number,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	IssuingRegion  string    `json:"issuing_region,omitempty"`

	SecurityFeatures []SecurityFeature `json:"security_features,omitempty"`

	Medications       []string  `json:"medications,omitempty"`
	PrescriberName    string    `json:"prescriber_name,omitempty"`
	PrescriberLicense string    `json:"prescriber_license,omitempty"`
	IssuedAt          time.Time `json:"issued_at,omitempty"`
	RefillsAuthorized int       `json:"refills_authorized,omitempty"`
}

// Empty reports whether extraction found nothing usable.
func (f Fields) Empty() bool {
	return f.FullName == "" && f.DateOfBirth.IsZero() && f.DocumentNumber == "" &&
		len(f.Medications) == 0 && f.PrescriberName == ""
}

// Result is one extraction outcome. Confidence is 0.0-1.0; malformed input
// yields an empty low-confidence Result rather than an error.
type Result struct {
	Fields      Fields
	Confidence  float64
	RawText     string
	ExtractedAt time.Time
}

// Engine is the narrow contract over the external OCR service.
type Engine interface {
	Extract(ctx context.Context, data []byte, docType DocumentType) (*Result, error)
}
