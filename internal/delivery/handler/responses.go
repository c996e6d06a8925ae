package handler

import (
	"time"

	"verity/internal/delivery"
)

// VerificationResponse is the wire shape of one handoff record.
type VerificationResponse struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	OrderID    string    `json:"order_id"`
	SessionID  string    `json:"session_id"`
	Method     string    `json:"method"`
	Passed     bool      `json:"passed"`
	Reason     string    `json:"reason,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// FromVerification maps a handoff record to its wire shape.
func FromVerification(record *delivery.Verification) VerificationResponse {
	return VerificationResponse{
		ID:         record.ID.String(),
		DeliveryID: record.DeliveryID.String(),
		OrderID:    record.OrderID.String(),
		SessionID:  record.SessionID.String(),
		Method:     string(record.Method),
		Passed:     record.Passed,
		Reason:     record.Reason,
		VerifiedAt: record.VerifiedAt,
	}
}

// VerificationsResponse is the wire shape of the attempt list.
type VerificationsResponse struct {
	Verifications []VerificationResponse `json:"verifications"`
}

// FromVerifications maps the attempt list to its wire shape.
func FromVerifications(records []delivery.Verification) VerificationsResponse {
	out := VerificationsResponse{Verifications: make([]VerificationResponse, 0, len(records))}
	for i := range records {
		out.Verifications = append(out.Verifications, FromVerification(&records[i]))
	}
	return out
}
