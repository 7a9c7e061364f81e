package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultRingCapacity is the memory ring size when none is given.
const DefaultRingCapacity = 1000

// MemoryStorage keeps the most recent records in a fixed-capacity ring.
// Oldest records are overwritten once the ring is full; everything is lost
// on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	records  []Record
	next     int
	size     int
	capacity int
}

// NewMemoryStorage creates a ring holding up to capacity records. A
// non-positive capacity falls back to DefaultRingCapacity.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &MemoryStorage{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// Store appends one record, overwriting the oldest when full.
func (m *MemoryStorage) Store(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[m.next] = *record
	m.next = (m.next + 1) % m.capacity
	if m.size < m.capacity {
		m.size++
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryStorage) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > m.size {
		limit = m.size
	}

	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + m.capacity) % m.capacity
		out = append(out, m.records[idx])
	}
	return out, nil
}

// Prune removes records older than olderThan, compacting the ring.
func (m *MemoryStorage) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]Record, 0, m.size)
	for i := m.size; i >= 1; i-- {
		idx := (m.next - i + m.capacity) % m.capacity
		if !m.records[idx].Time.Before(olderThan) {
			kept = append(kept, m.records[idx])
		}
	}
	removed := int64(m.size - len(kept))

	m.records = make([]Record, m.capacity)
	copy(m.records, kept)
	m.next = len(kept) % m.capacity
	m.size = len(kept)
	return removed, nil
}

// Len returns how many records the ring currently holds.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Close is a no-op for the memory backend.
func (m *MemoryStorage) Close() error {
	return nil
}
