package audit

import (
	"context"

	id "verity/pkg/domain"
)

// Store persists audit events. Append-only; nothing updates or deletes an
// event once written.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOrder(ctx context.Context, orderID id.OrderID) ([]Event, error)
}
