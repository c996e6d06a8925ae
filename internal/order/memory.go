package order

import (
	"context"
	"sync"

	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

// MemoryReader is the in-process Reader used in dev and tests.
type MemoryReader struct {
	mu     sync.RWMutex
	orders map[id.OrderID]*Order
}

func NewMemoryReader() *MemoryReader {
	return &MemoryReader{orders: make(map[id.OrderID]*Order)}
}

// Put registers an order for lookup.
func (r *MemoryReader) Put(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *MemoryReader) GetOrder(_ context.Context, orderID id.OrderID) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.orders[orderID]; ok {
		copied := *o
		copied.LineItems = append([]LineItem(nil), o.LineItems...)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
