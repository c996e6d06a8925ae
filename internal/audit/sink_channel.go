package audit

import (
	"context"
	"time"
)

// ChannelSink hands events to a channel consumed by a Worker, keeping
// audit persistence off the request path. Emit blocks when the channel
// is full rather than dropping: the trail is load-bearing.
type ChannelSink struct {
	out chan<- Event
}

func NewChannelSink(out chan<- Event) *ChannelSink {
	return &ChannelSink{out: out}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case s.out <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
