// Package dispatch runs background tasks (document extraction, report
// generation) off the request path with bounded retries. Delivery is
// at-least-once: a task interrupted mid-run may execute again, so handlers
// must be idempotent; document updates compare-and-swap on the document
// id, report emission is keyed by check id.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Task is one unit of background work.
type Task struct {
	// Name identifies the task kind in logs.
	Name string
	// Run does the work. Returning an error triggers retry when Retryable
	// says so.
	Run func(ctx context.Context) error
	// Retryable classifies errors; nil means nothing is retried.
	Retryable func(err error) bool
	// OnExhausted fires once after the final failed attempt, letting the
	// owner record a terminal state (e.g. mark a document
	// extraction_failed).
	OnExhausted func(ctx context.Context, err error)
}

// ErrQueueFull is returned when the inbox cannot accept more work.
var ErrQueueFull = errors.New("dispatch queue full")

// Dispatcher consumes tasks from a bounded inbox with exponential backoff
// between attempts.
type Dispatcher struct {
	inbox       chan Task
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithBaseBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if backoff > 0 {
			d.baseBackoff = backoff
		}
	}
}

func WithQueueDepth(depth int) Option {
	return func(d *Dispatcher) {
		if depth > 0 {
			d.inbox = make(chan Task, depth)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New constructs a dispatcher with defaults of 3 attempts, 500ms base
// backoff, and a 256-task inbox.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		inbox:       make(chan Task, 256),
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue submits a task without blocking the caller.
func (d *Dispatcher) Enqueue(task Task) error {
	select {
	case d.inbox <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes tasks until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-d.inbox:
			d.execute(ctx, task)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, task Task) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err = task.Run(ctx)
		if err == nil {
			return
		}
		if task.Retryable == nil || !task.Retryable(err) {
			break
		}
		if d.logger != nil {
			d.logger.WarnContext(ctx, "task failed, retrying",
				"task", task.Name,
				"attempt", attempt,
				"error", err,
			)
		}
		if attempt < d.maxAttempts {
			backoff := d.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	if d.logger != nil {
		d.logger.ErrorContext(ctx, "task exhausted retries",
			"task", task.Name,
			"error", err,
		)
	}
	if task.OnExhausted != nil {
		task.OnExhausted(ctx, err)
	}
}
