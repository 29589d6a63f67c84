package strategy_test

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

type mockQuotes struct {
	mu    sync.Mutex
	yes   domain.Quote
	no    domain.Quote
	err   error
	calls int
}

func (m *mockQuotes) BestQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	yes, _, err := m.BestQuotesForPair(ctx, tokenID, "")
	return yes, err
}

func (m *mockQuotes) BestQuotesForPair(_ context.Context, _, _ string) (domain.Quote, domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.Quote{}, domain.Quote{}, m.err
	}
	return m.yes, m.no, nil
}

func (m *mockQuotes) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockOrders struct {
	mu        sync.Mutex
	orders    []domain.LimitOrder
	events    []string
	err       error
	cancelErr error
	delay     time.Duration
	started   chan struct{}
}

func (m *mockOrders) SubmitLimitOrder(ctx context.Context, o domain.LimitOrder) (domain.OrderAck, error) {
	m.record("submit-start")
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if ctx.Err() != nil {
		m.record("submit-cancelled")
		return domain.OrderAck{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "submit-end")
	if m.err != nil {
		return domain.OrderAck{}, m.err
	}
	m.orders = append(m.orders, o)
	return domain.OrderAck{OrderID: "0xorder", Status: "matched", Success: true}, nil
}

func (m *mockOrders) CancelAll(context.Context) error {
	m.record("cancel-all")
	return m.cancelErr
}

func (m *mockOrders) record(ev string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockOrders) Orders() []domain.LimitOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LimitOrder(nil), m.orders...)
}

func (m *mockOrders) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func (m *mockOrders) count(ev string) int {
	n := 0
	for _, e := range m.Events() {
		if e == ev {
			n++
		}
	}
	return n
}

// mockTicker entrega lo que el test escribe en ch.
type mockTicker struct {
	ch    chan domain.PriceTick
	mu    sync.Mutex
	stops int
}

func newMockTicker() *mockTicker {
	return &mockTicker{ch: make(chan domain.PriceTick, 16)}
}

func (m *mockTicker) Stream(context.Context) <-chan domain.PriceTick {
	return m.ch
}

func (m *mockTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *mockTicker) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// 40s dentro de un minuto, para que +20s cambie de bucket.
	return &fakeClock{now: time.Unix(1_700_000_080, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
