package testutils

import (
	"context"
	"sync"

	"github.com/evdnx/voltrail/types"
)

// MockExecutor implements the Executor interface in‑memory. Every order that
// is not configured to fail is filled in full at its reference price.
type MockExecutor struct {
	mu     sync.Mutex
	orders []types.Order // captured for assertions
	fail   map[string]bool
}

// NewMockExecutor creates a fresh executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{fail: make(map[string]bool)}
}

// FailFor makes every submission for symbol return ErrMock.
func (m *MockExecutor) FailFor(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[symbol] = true
}

// Submit records the order and returns a FILLED result.
func (m *MockExecutor) Submit(_ context.Context, o types.Order) (types.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[o.Symbol] {
		return types.Fill{}, ErrMock
	}
	m.orders = append(m.orders, o)
	return types.Fill{
		Symbol:      o.Symbol,
		Side:        o.Side,
		Status:      types.StatusFilled,
		OrderID:     int64(len(m.orders)),
		ExecutedQty: o.Qty,
		Price:       o.Price,
		QuoteQty:    o.Qty * o.Price,
	}, nil
}

// Orders returns a copy of all submitted orders (useful for assertions).
func (m *MockExecutor) Orders() []types.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}
