package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("ocr-engine")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "ocr-engine", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(3))

	// First two failures don't open
	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	// Third failure opens the circuit
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(1), WithSuccessThreshold(2))

	// Open the circuit
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// First success doesn't close
	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	// Second success closes
	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(3))

	// Two failures
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	// Success resets count
	b.RecordSuccess()

	// Two more failures don't open (count was reset)
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	// Third failure opens
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_FailureResetsSuccessCount(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(1), WithSuccessThreshold(3))

	// Open the circuit
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Two successes
	b.RecordSuccess()
	b.RecordSuccess()

	// Failure resets success count (stays open)
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Need 3 successes again to close
	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(1))

	// Open the circuit
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Reset closes it
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_AllowAlwaysTrueWhileClosed(t *testing.T) {
	b := New("ocr-engine")
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
}

func TestBreaker_OpenCircuitRetriesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	b := New("ocr-engine",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// Freshly opened: the gate holds for a full cooldown
	assert.False(t, b.Allow())

	now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())

	// Cooldown elapsed: exactly one trial call gets through
	now = now.Add(1 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBreaker_RecoveredBackendClosesCircuit(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	b := New("ocr-engine",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())

	// A healthy trial call releases the gate immediately for the next one
	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.Allow())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreaker_FailedTrialReArmsCooldown(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	b := New("ocr-engine",
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())

	// Trial call failed: the next attempt waits out another cooldown
	b.RecordFailure()
	assert.False(t, b.Allow())
	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreaker_OpenCircuitReturnsFallback(t *testing.T) {
	b := New("ocr-engine", WithFailureThreshold(1))

	// Open the circuit
	b.RecordFailure()

	// Additional failures return fallback without state change
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened) // Already open, no state change
}
