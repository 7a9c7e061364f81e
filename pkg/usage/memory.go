package usage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps usage counters in process memory. It is the default
// backend; counters are lost when the process exits.
type MemoryStorage struct {
	mu sync.RWMutex

	// rows maps day -> model -> counters.
	rows map[string]map[string]*Row
}

// NewMemoryStorage creates an empty in-memory usage store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{rows: make(map[string]map[string]*Row)}
}

// Add accumulates one sample.
func (m *MemoryStorage) Add(_ context.Context, day, model string, inputTokens, outputTokens int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	models, ok := m.rows[day]
	if !ok {
		models = make(map[string]*Row)
		m.rows[day] = models
	}
	row, ok := models[model]
	if !ok {
		row = &Row{Day: day, Model: model}
		models[model] = row
	}

	row.InputTokens += inputTokens
	row.OutputTokens += outputTokens
	row.Requests++
	return nil
}

// Range returns rows with from <= day <= to, ordered by day then model.
// DayFormat keys compare correctly as strings.
func (m *MemoryStorage) Range(_ context.Context, from, to string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for day, models := range m.rows {
		if day < from || day > to {
			continue
		}
		for _, row := range models {
			out = append(out, *row)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Model < out[j].Model
	})
	return out, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryStorage) Close() error {
	return nil
}
