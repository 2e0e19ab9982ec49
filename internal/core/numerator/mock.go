package numerator

import (
	"context"
	"sync"
)

// MockCounter is an in-process Counter for unit tests.
type MockCounter struct {
	mu     sync.Mutex
	values map[string]int64

	// NextFunc overrides the default behaviour when set.
	NextFunc func(ctx context.Context, tenantID, key string) (int64, error)
}

// Next implements Counter.
func (m *MockCounter) Next(ctx context.Context, tenantID, key string) (int64, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, tenantID, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	k := tenantID + ":" + key
	m.values[k]++
	return m.values[k], nil
}

var _ Counter = (*MockCounter)(nil)
