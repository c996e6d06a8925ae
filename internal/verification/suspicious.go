package verification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"verity/internal/audit"
	"verity/pkg/cache"
	id "verity/pkg/domain"
)

const (
	suspiciousKeyPrefix = "verification:failures:"

	// suspiciousThreshold failed verifications within the window flag the
	// customer for review.
	suspiciousThreshold = 3
	suspiciousWindow    = 24 * time.Hour
)

// ActivityTracker counts failed verification attempts per customer in the
// TTL cache and emits a security audit event when the threshold is
// crossed. The counter is best-effort; a cache outage never blocks the
// verification path.
type ActivityTracker struct {
	cache cache.Store
	sink  audit.Sink
}

func NewActivityTracker(cacheStore cache.Store, sink audit.Sink) *ActivityTracker {
	return &ActivityTracker{cache: cacheStore, sink: sink}
}

// RecordFailure bumps the customer's failure counter. Flagging fires once
// per window, on the attempt that reaches the threshold exactly.
func (t *ActivityTracker) RecordFailure(ctx context.Context, session *Session) {
	if t == nil || t.cache == nil {
		return
	}
	key := suspiciousKeyPrefix + session.CustomerID.String()
	count, err := t.cache.Increment(ctx, key, 1, suspiciousWindow)
	if err != nil || count != suspiciousThreshold {
		return
	}
	if t.sink != nil {
		_ = t.sink.Emit(ctx, audit.Event{
			SessionID:  session.ID,
			OrderID:    session.OrderID,
			CustomerID: session.CustomerID,
			Action:     audit.ActionSuspiciousActivity,
			Decision:   "flagged",
			Reason:     fmt.Sprintf("%d failed verification attempts within %s", count, suspiciousWindow),
		})
	}
}

// FailureCount returns the current counter for tests and review tooling.
// The read never creates or re-arms an entry.
func (t *ActivityTracker) FailureCount(ctx context.Context, customerID id.CustomerID) int64 {
	if t == nil || t.cache == nil {
		return 0
	}
	raw, err := t.cache.Get(ctx, suspiciousKeyPrefix+customerID.String())
	if err != nil {
		return 0
	}
	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return count
}
