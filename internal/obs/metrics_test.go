package obs_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/latencybot/internal/obs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *obs.Metrics
	m.IncTick()
	m.IncOutcome("throttled")
	m.ObserveOrder(time.Millisecond, nil)
	assert.Equal(t, obs.Snapshot{}, m.Snapshot())
}

func TestMetrics_Snapshot(t *testing.T) {
	m := obs.NewMetrics()
	m.IncTick()
	m.IncTick()
	m.IncTrigger()
	m.IncOutcome("order_placed")
	m.IncOutcome("order_placed")
	m.ObserveOrder(10*time.Millisecond, nil)
	m.ObserveOrder(30*time.Millisecond, errors.New("rejected"))

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.Ticks)
	assert.Equal(t, uint64(1), s.Triggers)
	assert.Equal(t, uint64(1), s.OrdersPlaced)
	assert.Equal(t, uint64(1), s.OrdersFailed)
	assert.Equal(t, uint64(2), s.Outcomes["order_placed"])
	assert.Equal(t, uint64(2), s.OrderLatency.Count)
	assert.Equal(t, 10*time.Millisecond, s.OrderLatency.Min)
	assert.Equal(t, 30*time.Millisecond, s.OrderLatency.Max)
	assert.Equal(t, 20*time.Millisecond, s.OrderLatency.Avg)
}

func TestHandler_ServesJSON(t *testing.T) {
	m := obs.NewMetrics()
	m.IncReconnect()

	rec := httptest.NewRecorder()
	obs.Handler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got["reconnects"])
}
