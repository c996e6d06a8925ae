package handler

import (
	"strings"

	"verity/internal/evidence/extract"
	"verity/internal/verification"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
)

// maxEvidenceBytes caps one uploaded document or selfie. Large enough
// for a phone photo, small enough to keep request bodies bounded.
const maxEvidenceBytes = 10 << 20

// InitiateRequest is the HTTP request body for POST /verification/initiate.
type InitiateRequest struct {
	OrderID          string `json:"order_id"`
	CustomerID       string `json:"customer_id"`
	VerificationType string `json:"verification_type,omitempty"`

	// Parsed values (populated by Validate)
	parsedOrderID    id.OrderID
	parsedCustomerID id.CustomerID
	parsedType       verification.Type
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InitiateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.OrderID = strings.TrimSpace(r.OrderID)
	if r.OrderID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "order_id is required")
	}
	orderID, err := id.ParseOrderID(r.OrderID)
	if err != nil {
		return err
	}
	r.parsedOrderID = orderID

	r.CustomerID = strings.TrimSpace(r.CustomerID)
	if r.CustomerID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "customer_id is required")
	}
	customerID, err := id.ParseCustomerID(r.CustomerID)
	if err != nil {
		return err
	}
	r.parsedCustomerID = customerID

	r.parsedType = verification.Type(strings.ToLower(strings.TrimSpace(r.VerificationType)))
	if r.parsedType != "" && !r.parsedType.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "verification_type must be age, prescription, or both")
	}
	return nil
}

// UploadDocumentRequest is the HTTP request body for
// POST /verification/{sessionID}/document. Data carries the raw image,
// base64-encoded by encoding/json.
type UploadDocumentRequest struct {
	DocumentType string `json:"document_type"`
	Side         string `json:"side,omitempty"`
	Data         []byte `json:"data"`

	parsedType extract.DocumentType
	parsedSide verification.Side
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UploadDocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "data is required")
	}
	if len(r.Data) > maxEvidenceBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "data exceeds the 10 MiB evidence limit")
	}

	r.parsedType = extract.DocumentType(strings.ToLower(strings.TrimSpace(r.DocumentType)))
	if !r.parsedType.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown document_type")
	}

	r.parsedSide = verification.Side(strings.ToLower(strings.TrimSpace(r.Side)))
	if r.parsedSide == "" {
		r.parsedSide = verification.SideSingle
	}
	if !r.parsedSide.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "side must be front, back, or single")
	}
	return nil
}

// UploadSelfieRequest is the HTTP request body for
// POST /verification/{sessionID}/selfie.
type UploadSelfieRequest struct {
	Data []byte `json:"data"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UploadSelfieRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "data is required")
	}
	if len(r.Data) > maxEvidenceBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "data exceeds the 10 MiB evidence limit")
	}
	return nil
}
