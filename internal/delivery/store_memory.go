package delivery

import (
	"context"
	"sync"

	id "verity/pkg/domain"
)

// MemoryStore keeps handoff records in memory. Backs dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Verification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, verification *Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *verification)
	return nil
}

func (s *MemoryStore) ListByDelivery(_ context.Context, deliveryID id.DeliveryID) ([]Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Verification
	for _, record := range s.records {
		if record.DeliveryID == deliveryID {
			out = append(out, record)
		}
	}
	return out, nil
}
