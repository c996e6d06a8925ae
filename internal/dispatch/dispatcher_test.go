package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runDispatcher(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_RunsTask(t *testing.T) {
	d := New()
	cancel := runDispatcher(t, d)
	defer cancel()

	var ran atomic.Bool
	require.NoError(t, d.Enqueue(Task{
		Name: "noop",
		Run: func(context.Context) error {
			ran.Store(true)
			return nil
		},
	}))

	waitFor(t, ran.Load)
}

func TestDispatcher_RetriesRetryableFailures(t *testing.T) {
	d := New(WithBaseBackoff(time.Millisecond), WithMaxAttempts(3))
	cancel := runDispatcher(t, d)
	defer cancel()

	transient := errors.New("engine outage")
	var attempts atomic.Int32
	require.NoError(t, d.Enqueue(Task{
		Name: "flaky",
		Run: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return transient
			}
			return nil
		},
		Retryable: func(err error) bool { return errors.Is(err, transient) },
	}))

	waitFor(t, func() bool { return attempts.Load() == 3 })
}

func TestDispatcher_NonRetryableFailsOnce(t *testing.T) {
	d := New(WithBaseBackoff(time.Millisecond), WithMaxAttempts(3))
	cancel := runDispatcher(t, d)
	defer cancel()

	var attempts atomic.Int32
	var exhausted atomic.Bool
	require.NoError(t, d.Enqueue(Task{
		Name: "bad-data",
		Run: func(context.Context) error {
			attempts.Add(1)
			return errors.New("unparseable")
		},
		Retryable:   func(error) bool { return false },
		OnExhausted: func(context.Context, error) { exhausted.Store(true) },
	}))

	waitFor(t, exhausted.Load)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDispatcher_OnExhaustedAfterMaxAttempts(t *testing.T) {
	d := New(WithBaseBackoff(time.Millisecond), WithMaxAttempts(2))
	cancel := runDispatcher(t, d)
	defer cancel()

	var attempts atomic.Int32
	var exhausted atomic.Bool
	require.NoError(t, d.Enqueue(Task{
		Name: "always-down",
		Run: func(context.Context) error {
			attempts.Add(1)
			return errors.New("outage")
		},
		Retryable:   func(error) bool { return true },
		OnExhausted: func(context.Context, error) { exhausted.Store(true) },
	}))

	waitFor(t, exhausted.Load)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := New(WithQueueDepth(1))
	// not running: the single slot fills and the next enqueue is rejected

	require.NoError(t, d.Enqueue(Task{Name: "first", Run: func(context.Context) error { return nil }}))
	err := d.Enqueue(Task{Name: "second", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
}
