package handler

import (
	"time"

	"verity/internal/verification"
)

// SessionResponse is the wire shape of one session.
type SessionResponse struct {
	SessionID        string               `json:"session_id"`
	OrderID          string               `json:"order_id"`
	CustomerID       string               `json:"customer_id"`
	VerificationType string               `json:"verification_type"`
	Status           string               `json:"status"`
	MinimumAge       int                  `json:"minimum_age,omitempty"`
	Result           *verification.Result `json:"result,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	ExpiresAt        time.Time            `json:"expires_at"`
}

// FromSession maps a session to its wire shape.
func FromSession(session *verification.Session) SessionResponse {
	return SessionResponse{
		SessionID:        session.ID.String(),
		OrderID:          session.OrderID.String(),
		CustomerID:       session.CustomerID.String(),
		VerificationType: string(session.Type),
		Status:           string(session.Status),
		MinimumAge:       session.MinimumAge,
		Result:           session.Result,
		CreatedAt:        session.CreatedAt,
		ExpiresAt:        session.ExpiresAt,
	}
}

// InitiateResponse additionally carries the delivery verification code,
// which is only revealed at initiate.
type InitiateResponse struct {
	SessionResponse
	VerificationCode string `json:"verification_code"`
}

// DocumentResponse is the wire shape of one document intake.
type DocumentResponse struct {
	DocumentID     string    `json:"document_id"`
	DocumentType   string    `json:"document_type"`
	Side           string    `json:"side"`
	Extracted      bool      `json:"extracted"`
	ExtractionMode string    `json:"extraction_mode"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// FromDocumentUpload maps an intake result to its wire shape.
func FromDocumentUpload(upload *verification.DocumentUpload) DocumentResponse {
	mode := "queued"
	if upload.Extraction != nil {
		mode = "inline"
	}
	return DocumentResponse{
		DocumentID:     upload.Document.ID.String(),
		DocumentType:   string(upload.Document.Type),
		Side:           string(upload.Document.Side),
		Extracted:      upload.Extraction != nil,
		ExtractionMode: mode,
		UploadedAt:     upload.Document.UploadedAt,
	}
}

// SelfieResponse is the wire shape of one selfie intake.
type SelfieResponse struct {
	SessionID         string  `json:"session_id"`
	MatchScore        float64 `json:"match_score"`
	LivenessScore     float64 `json:"liveness_score"`
	BiometricVerified bool    `json:"biometric_verified"`
}

// StatusResponse is the wire shape of GET /verification/{sessionID}/status.
type StatusResponse struct {
	SessionResponse
	Progress       int      `json:"progress"`
	RemainingSteps []string `json:"remaining_steps,omitempty"`
}
