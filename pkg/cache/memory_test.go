package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 5*time.Minute))

	now = now.Add(4 * time.Minute)
	_, err := store.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	now = now.Add(24 * time.Hour)
	_, err := store.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemory_Increment(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory(WithClock(func() time.Time { return now }))

	n, err := store.Increment(ctx, "failures", 1, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Increment(ctx, "failures", 2, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// counter resets once the window elapses
	now = now.Add(11 * time.Minute)
	n, err = store.Increment(ctx, "failures", 1, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
