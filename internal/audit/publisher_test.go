package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verity/pkg/domain"
)

func TestPublisher_EmitStampsTimestamp(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)

	orderID := id.NewOrderID()
	require.NoError(t, pub.Emit(context.Background(), Event{
		OrderID: orderID,
		Action:  ActionSessionCompleted,
	}))

	events, err := pub.List(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_ListFiltersByOrder(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)
	ctx := context.Background()

	orderA := id.NewOrderID()
	orderB := id.NewOrderID()
	require.NoError(t, pub.Emit(ctx, Event{OrderID: orderA, Action: ActionSessionInitiated}))
	require.NoError(t, pub.Emit(ctx, Event{OrderID: orderB, Action: ActionSessionInitiated}))
	require.NoError(t, pub.Emit(ctx, Event{OrderID: orderA, Action: ActionSessionCompleted}))

	events, err := pub.List(ctx, orderA)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestActionCategories(t *testing.T) {
	assert.Equal(t, CategoryCompliance, ActionSessionCompleted.Category())
	assert.Equal(t, CategoryCompliance, ActionControlledDispense.Category())
	assert.Equal(t, CategorySecurity, ActionSuspiciousActivity.Category())
	assert.Equal(t, CategoryOperations, ActionDocumentUploaded.Category())
	assert.Equal(t, CategoryOperations, Action("unknown").Category())
}

func TestWorker_PersistsInboxEvents(t *testing.T) {
	store := NewMemoryStore()
	inbox := make(chan Event, 4)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	orderID := id.NewOrderID()
	inbox <- Event{OrderID: orderID, Action: ActionComplianceChecked, Timestamp: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.All()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Len(t, store.All(), 1)

	cancel()
	<-done
}
