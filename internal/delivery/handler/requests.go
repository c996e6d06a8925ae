package handler

import (
	"strings"
	"time"

	"verity/internal/compliance"
	"verity/internal/delivery"
	"verity/internal/evidence/storage"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
)

// VerifyRequest is the HTTP request body for
// POST /delivery/{deliveryID}/verify.
type VerifyRequest struct {
	VerificationCode  string    `json:"verification_code,omitempty"`
	PhotoRef          string    `json:"photo_ref,omitempty"`
	OrderID           string    `json:"order_id,omitempty"`
	ScheduledAt       time.Time `json:"scheduled_at,omitempty"`
	DriverLicensed    bool      `json:"driver_licensed,omitempty"`
	SignatureCaptured bool      `json:"signature_captured,omitempty"`
	MedicalCard       bool      `json:"medical_card_on_file,omitempty"`

	// Parsed values (populated by Validate)
	parsedOrderID id.OrderID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.VerificationCode = strings.TrimSpace(r.VerificationCode)
	r.PhotoRef = strings.TrimSpace(r.PhotoRef)
	if (r.VerificationCode == "") == (r.PhotoRef == "") {
		return dErrors.New(dErrors.CodeInvalidInput, "exactly one of verification_code or photo_ref is required")
	}

	r.OrderID = strings.TrimSpace(r.OrderID)
	if r.OrderID != "" {
		orderID, err := id.ParseOrderID(r.OrderID)
		if err != nil {
			return err
		}
		r.parsedOrderID = orderID
	}
	if r.PhotoRef != "" && r.parsedOrderID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "order_id is required for photo verification")
	}
	return nil
}

func (r *VerifyRequest) proof() delivery.Proof {
	return delivery.Proof{
		Code:     r.VerificationCode,
		PhotoRef: storage.Ref(r.PhotoRef),
		OrderID:  r.parsedOrderID,
		Facts: compliance.DeliveryFacts{
			At:                 r.ScheduledAt,
			DriverLicensed:     r.DriverLicensed,
			SignatureCommitted: r.SignatureCaptured,
			MedicalCardOnFile:  r.MedicalCard,
		},
	}
}
