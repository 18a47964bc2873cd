package testutils

import (
	"fmt"
	"sync"

	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/types"
)

type mockKey struct{ book, symbol string }

// MockBroker implements executor.Broker in-memory. Orders are only recorded
// on Submit; tests drive their outcome with Fill and Finish.
type MockBroker struct {
	mu        sync.RWMutex
	cash      float64
	positions map[mockKey]float64 // qty (signed)
	avgPrice  map[mockKey]float64
	orders    []types.Order // captured for assertions
	open      map[string]types.Order
	listeners map[string][]executor.Listener
	seq       int
	// SubmitErr, when set, is returned by every Submit.
	SubmitErr error
}

// NewMockBroker creates a fresh broker with the supplied starting cash.
func NewMockBroker(cash float64) *MockBroker {
	return &MockBroker{
		cash:      cash,
		positions: make(map[mockKey]float64),
		avgPrice:  make(map[mockKey]float64),
		open:      make(map[string]types.Order),
		listeners: make(map[string][]executor.Listener),
	}
}

func (m *MockBroker) Submit(o types.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.seq++
	if o.ID == "" {
		o.ID = fmt.Sprintf("mock-%d", m.seq)
	}
	m.orders = append(m.orders, o)
	m.open[o.ID] = o
	return o.ID, nil
}

func (m *MockBroker) Cancel(id string) error {
	return m.Finish(id, types.OrderCanceled)
}

func (m *MockBroker) Subscribe(book string, l executor.Listener) {
	m.mu.Lock()
	m.listeners[book] = append(m.listeners[book], l)
	m.mu.Unlock()
}

// Fill completes an open order at price, updates the book and notifies.
func (m *MockBroker) Fill(id string, price float64) error {
	m.mu.Lock()
	o, ok := m.open[id]
	if !ok {
		m.mu.Unlock()
		return executor.ErrUnknownOrder
	}
	delete(m.open, id)
	k := mockKey{o.Strategy, o.Symbol}
	qty := o.Qty
	if o.Side == types.Sell {
		qty = -qty
	}
	prev := m.positions[k]
	m.positions[k] = prev + qty
	switch {
	case m.positions[k] == 0:
		m.avgPrice[k] = 0
	case prev == 0 || (prev > 0) == (qty > 0):
		m.avgPrice[k] = (m.avgPrice[k]*abs(prev) + price*abs(qty)) / abs(m.positions[k])
	}
	m.cash -= qty * price
	ls := append([]executor.Listener(nil), m.listeners[o.Strategy]...)
	m.mu.Unlock()

	ev := executor.OrderEvent{
		Order:     o,
		Status:    types.OrderCompleted,
		ExecPrice: price,
		ExecValue: price * o.Qty,
	}
	for _, l := range ls {
		l.OnOrder(ev)
	}
	return nil
}

// Finish ends an open order with a non-fill status such as
// types.OrderRejected or types.OrderMargin.
func (m *MockBroker) Finish(id string, status types.OrderStatus) error {
	m.mu.Lock()
	o, ok := m.open[id]
	if !ok {
		m.mu.Unlock()
		return executor.ErrUnknownOrder
	}
	delete(m.open, id)
	ls := append([]executor.Listener(nil), m.listeners[o.Strategy]...)
	m.mu.Unlock()

	for _, l := range ls {
		l.OnOrder(executor.OrderEvent{Order: o, Status: status})
	}
	return nil
}

// Notify sends an arbitrary event to the order's book listeners without
// touching broker state.
func (m *MockBroker) Notify(ev executor.OrderEvent) {
	m.mu.RLock()
	ls := append([]executor.Listener(nil), m.listeners[ev.Order.Strategy]...)
	m.mu.RUnlock()
	for _, l := range ls {
		l.OnOrder(ev)
	}
}

// Trade sends a trade notification to book.
func (m *MockBroker) Trade(book string, ev executor.TradeEvent) {
	m.mu.RLock()
	ls := append([]executor.Listener(nil), m.listeners[book]...)
	m.mu.RUnlock()
	for _, l := range ls {
		l.OnTrade(ev)
	}
}

// Position returns qty & avg price for a book and symbol.
func (m *MockBroker) Position(book, symbol string) (float64, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := mockKey{book, symbol}
	return m.positions[k], m.avgPrice[k]
}

func (m *MockBroker) Cash() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cash
}

// Value marks every position at its average price.
func (m *MockBroker) Value() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := m.cash
	for k, q := range m.positions {
		v += q * m.avgPrice[k]
	}
	return v
}

// Orders returns a copy of all submitted orders (useful for assertions).
func (m *MockBroker) Orders() []types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// Last returns the most recently submitted order.
func (m *MockBroker) Last() (types.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.orders) == 0 {
		return types.Order{}, false
	}
	return m.orders[len(m.orders)-1], true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
