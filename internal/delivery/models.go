// Package delivery confirms, at handoff time, that the order's
// verification session previously resolved verified and that the
// delivery itself satisfies the jurisdiction's requirements.
package delivery

import (
	"context"
	"time"

	"verity/internal/compliance"
	id "verity/pkg/domain"
)

// Method names how the courier proved the handoff.
type Method string

const (
	// MethodCode matches the opaque code issued at session initiate.
	MethodCode Method = "code"
	// MethodPhoto matches a handoff photo against the session's selfie.
	MethodPhoto Method = "photo"
)

// Verification is the durable record of one handoff attempt.
type Verification struct {
	ID         id.HandoffID
	DeliveryID id.DeliveryID
	OrderID    id.OrderID
	SessionID  id.SessionID
	Method     Method
	Passed     bool
	Reason     string

	// Compliance holds the point-of-handoff check verdict, nil when the
	// session gate already failed.
	Compliance *compliance.Check

	VerifiedAt time.Time
}

// Store persists handoff attempts. Every attempt is recorded, passed or
// not.
type Store interface {
	Append(ctx context.Context, verification *Verification) error
	ListByDelivery(ctx context.Context, deliveryID id.DeliveryID) ([]Verification, error)
}
