package compliance

import (
	"context"

	id "verity/pkg/domain"
)

// RequirementStore holds the policy table. Read-mostly; writes must
// invalidate any cache layered in front (see CachedRequirementStore).
type RequirementStore interface {
	// List returns rows whose jurisdiction is the target or the ALL
	// wildcard, filtered by productType when non-empty. Precedence
	// resolution is the service's job, not the store's.
	List(ctx context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) ([]Requirement, error)
	Upsert(ctx context.Context, requirement Requirement) error
}

// CheckLog is the durable trail of compliance verdicts.
type CheckLog interface {
	Append(ctx context.Context, check Check) error
	ListByOrder(ctx context.Context, orderID id.OrderID) ([]Check, error)
}
