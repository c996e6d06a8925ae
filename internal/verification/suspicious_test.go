package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/audit"
	"verity/pkg/cache"
	id "verity/pkg/domain"
)

func TestActivityTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("flags once when the threshold is reached", func(t *testing.T) {
		sink := audit.NewMemoryStore()
		tracker := NewActivityTracker(cache.NewMemory(), audit.NewPublisher(sink))
		session := &Session{
			ID:         id.NewSessionID(),
			OrderID:    id.NewOrderID(),
			CustomerID: id.NewCustomerID(),
		}

		for i := 0; i < suspiciousThreshold+1; i++ {
			tracker.RecordFailure(ctx, session)
		}

		events, err := sink.ListByOrder(ctx, session.OrderID)
		require.NoError(t, err)
		flagged := 0
		for _, event := range events {
			if event.Action == audit.ActionSuspiciousActivity {
				flagged++
			}
		}
		assert.Equal(t, 1, flagged)
		assert.Equal(t, int64(suspiciousThreshold+1), tracker.FailureCount(ctx, session.CustomerID))
	})

	t.Run("reading the counter does not create an entry", func(t *testing.T) {
		store := cache.NewMemory()
		tracker := NewActivityTracker(store, nil)
		customerID := id.NewCustomerID()

		assert.Zero(t, tracker.FailureCount(ctx, customerID))

		_, err := store.Get(ctx, suspiciousKeyPrefix+customerID.String())
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("nil tracker is a no-op", func(t *testing.T) {
		var tracker *ActivityTracker
		tracker.RecordFailure(ctx, &Session{})
		assert.Zero(t, tracker.FailureCount(ctx, id.NewCustomerID()))
	})
}
