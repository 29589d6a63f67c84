package obs

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters for the trading loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks        uint64
	triggers     uint64
	ordersPlaced uint64
	ordersFailed uint64
	quoteErrors  uint64
	reconnects   uint64

	mu       sync.Mutex
	outcomes map[string]uint64

	orderLatency LatencyStats
	startedAt    time.Time
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Avg   time.Duration `json:"avg_ns"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ticks        uint64            `json:"ticks"`
	Triggers     uint64            `json:"triggers"`
	OrdersPlaced uint64            `json:"orders_placed"`
	OrdersFailed uint64            `json:"orders_failed"`
	QuoteErrors  uint64            `json:"quote_errors"`
	Reconnects   uint64            `json:"reconnects"`
	Outcomes     map[string]uint64 `json:"outcomes"`
	OrderLatency LatencySnapshot   `json:"order_latency"`
	Uptime       time.Duration     `json:"uptime_ns"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:  make(map[string]uint64),
		startedAt: time.Now(),
	}
}

func (m *Metrics) IncTick() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
}

func (m *Metrics) IncTrigger() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.triggers, 1)
}

func (m *Metrics) IncQuoteError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.quoteErrors, 1)
}

func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// ObserveOrder records one submission attempt and its latency.
func (m *Metrics) ObserveOrder(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		atomic.AddUint64(&m.ordersFailed, 1)
	} else {
		atomic.AddUint64(&m.ordersPlaced, 1)
	}
	m.orderLatency.Observe(d)
}

// IncOutcome counts one decision outcome by name.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	outcomes := make(map[string]uint64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Ticks:        atomic.LoadUint64(&m.ticks),
		Triggers:     atomic.LoadUint64(&m.triggers),
		OrdersPlaced: atomic.LoadUint64(&m.ordersPlaced),
		OrdersFailed: atomic.LoadUint64(&m.ordersFailed),
		QuoteErrors:  atomic.LoadUint64(&m.quoteErrors),
		Reconnects:   atomic.LoadUint64(&m.reconnects),
		Outcomes:     outcomes,
		OrderLatency: m.orderLatency.Snapshot(),
		Uptime:       time.Since(m.startedAt),
	}
}

// Observe records a latency sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && cur <= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&s.max)
		if cur >= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

// Snapshot returns count/min/max/avg.
func (s *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&s.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
		Avg:   time.Duration(sum / count),
	}
}
