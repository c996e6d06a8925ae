package prescription

import (
	"context"
	"strings"
	"sync"

	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

// Store persists prescription records and their fill history.
type Store interface {
	SaveRecord(ctx context.Context, record Record) error
	FindRecord(ctx context.Context, prescriptionID id.PrescriptionID) (*Record, error)
	RecordFill(ctx context.Context, fill Fill) error
	ListFills(ctx context.Context, prescriptionID id.PrescriptionID, medication string) ([]Fill, error)
}

// MemoryStore keeps prescriptions and fills in memory for dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.PrescriptionID]Record
	fills   []Fill
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[id.PrescriptionID]Record)}
}

func (s *MemoryStore) SaveRecord(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) FindRecord(_ context.Context, prescriptionID id.PrescriptionID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[prescriptionID]; ok {
		return &record, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) RecordFill(_ context.Context, fill Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, fill)
	return nil
}

func (s *MemoryStore) ListFills(_ context.Context, prescriptionID id.PrescriptionID, medication string) ([]Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Fill
	for _, fill := range s.fills {
		if fill.PrescriptionID == prescriptionID && strings.EqualFold(fill.Medication, medication) {
			matched = append(matched, fill)
		}
	}
	return matched, nil
}
