package audit

import (
	"context"
	"time"

	id "verity/pkg/domain"
)

// Sink accepts audit events. Emission is fire-and-forget from the caller's
// perspective; implementations guarantee at-least-once delivery to their
// backend.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses
// the storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, orderID id.OrderID) ([]Event, error) {
	return p.store.ListByOrder(ctx, orderID)
}
