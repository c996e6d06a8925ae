package audit

import (
	"context"
	"sync"

	id "verity/pkg/domain"
)

// MemoryStore keeps events in memory for dev and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByOrder(_ context.Context, orderID id.OrderID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Event
	for _, e := range s.events {
		if e.OrderID == orderID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// All returns every recorded event in append order. Test helper.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}
