package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the in-process Store. Expired entries are dropped lazily on
// access; there is no background sweeper.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock injects a clock for TTL tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if entry.expired(m.clock()) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.clock().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()

	var current int64
	if entry, ok := m.entries[key]; ok && !entry.expired(now) {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err == nil {
			current = parsed
		}
		// keep the original expiry, matching Redis INCR semantics
		current += delta
		m.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(current, 10)), expiresAt: entry.expiresAt}
		return current, nil
	}

	current = delta
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	m.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(current, 10)), expiresAt: expiresAt}
	return current, nil
}
