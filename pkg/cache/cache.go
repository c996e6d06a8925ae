// Package cache provides a keyed byte store with TTL semantics. It replaces
// ad hoc in-process maps (requirement tables, prescriber lookups,
// suspicious-activity counters) with an explicit interface so tests run
// against local memory and production can share a Redis instance.
package cache

import (
	"context"
	"time"

	"verity/pkg/platform/sentinel"
)

// ErrMiss is returned by Get when the key is absent or its TTL elapsed.
var ErrMiss = sentinel.ErrNotFound

// Store is a keyed store with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Increment adds delta to a numeric counter, creating it with the given
	// TTL when absent, and returns the new value. Used for bounded activity
	// counters.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}
