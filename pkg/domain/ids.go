// Package domain defines the typed identifiers and small shared enums used
// across features. IDs are distinct types over uuid.UUID so the compiler
// rejects cross-wiring (e.g. passing an OrderID where a SessionID is
// expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "verity/pkg/domain-errors"
)

type (
	// SessionID identifies one verification session.
	SessionID uuid.UUID
	// OrderID identifies the order under verification.
	OrderID uuid.UUID
	// CustomerID identifies the customer receiving the order.
	CustomerID uuid.UUID
	// DocumentID identifies a single piece of uploaded evidence.
	DocumentID uuid.UUID
	// PrescriptionID identifies a prescription record.
	PrescriptionID uuid.UUID
	// DeliveryID identifies a delivery handoff.
	DeliveryID uuid.UUID
	// HandoffID identifies one recorded handoff verification attempt,
	// distinct from the delivery it was made against.
	HandoffID uuid.UUID
	// CheckID identifies one compliance check verdict.
	CheckID uuid.UUID
)

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "id must be a valid UUID", err)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parseUUID(raw)
	return SessionID(parsed), err
}

func ParseOrderID(raw string) (OrderID, error) {
	parsed, err := parseUUID(raw)
	return OrderID(parsed), err
}

func ParseCustomerID(raw string) (CustomerID, error) {
	parsed, err := parseUUID(raw)
	return CustomerID(parsed), err
}

func ParseDocumentID(raw string) (DocumentID, error) {
	parsed, err := parseUUID(raw)
	return DocumentID(parsed), err
}

func ParsePrescriptionID(raw string) (PrescriptionID, error) {
	parsed, err := parseUUID(raw)
	return PrescriptionID(parsed), err
}

func ParseDeliveryID(raw string) (DeliveryID, error) {
	parsed, err := parseUUID(raw)
	return DeliveryID(parsed), err
}

func ParseHandoffID(raw string) (HandoffID, error) {
	parsed, err := parseUUID(raw)
	return HandoffID(parsed), err
}

func ParseCheckID(raw string) (CheckID, error) {
	parsed, err := parseUUID(raw)
	return CheckID(parsed), err
}

func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewOrderID() OrderID               { return OrderID(uuid.New()) }
func NewCustomerID() CustomerID         { return CustomerID(uuid.New()) }
func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewPrescriptionID() PrescriptionID { return PrescriptionID(uuid.New()) }
func NewDeliveryID() DeliveryID         { return DeliveryID(uuid.New()) }
func NewHandoffID() HandoffID           { return HandoffID(uuid.New()) }
func NewCheckID() CheckID               { return CheckID(uuid.New()) }

func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id OrderID) String() string        { return uuid.UUID(id).String() }
func (id CustomerID) String() string     { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id PrescriptionID) String() string { return uuid.UUID(id).String() }
func (id DeliveryID) String() string     { return uuid.UUID(id).String() }
func (id HandoffID) String() string      { return uuid.UUID(id).String() }
func (id CheckID) String() string        { return uuid.UUID(id).String() }

// MarshalText/UnmarshalText keep the canonical UUID string form on every
// serialization path (JSON bodies, JSONB columns, audit topics).
func (id SessionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id OrderID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id CustomerID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PrescriptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DeliveryID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id HandoffID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id CheckID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func unmarshalUUID(text []byte) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	return uuid.Parse(string(text))
}

func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = SessionID(parsed)
	return err
}

func (id *OrderID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = OrderID(parsed)
	return err
}

func (id *CustomerID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = CustomerID(parsed)
	return err
}

func (id *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = DocumentID(parsed)
	return err
}

func (id *PrescriptionID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = PrescriptionID(parsed)
	return err
}

func (id *DeliveryID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = DeliveryID(parsed)
	return err
}

func (id *HandoffID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = HandoffID(parsed)
	return err
}

func (id *CheckID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = CheckID(parsed)
	return err
}

func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PrescriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DeliveryID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HandoffID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CheckID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// Jurisdiction is the regulatory region (typically a state code) whose rules
// apply to a delivery. JurisdictionAll marks requirement rows that apply
// everywhere.
type Jurisdiction string

const JurisdictionAll Jurisdiction = "ALL"

func (j Jurisdiction) String() string { return string(j) }

// ProductType classifies order line items for requirement resolution.
type ProductType string

const (
	ProductAlcohol      ProductType = "alcohol"
	ProductTobacco      ProductType = "tobacco"
	ProductCannabis     ProductType = "cannabis"
	ProductPrescription ProductType = "prescription"
)
