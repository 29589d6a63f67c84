package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/latencybot/internal/adapters/polymarket"
)

// Niveles desordenados a propósito: el cliente debe reordenarlos.
const bookFixture = `{
	"market": "0xcond",
	"asset_id": "tid_yes",
	"timestamp": "1700000000123",
	"hash": "0xhash",
	"bids": [
		{"price": "0.50", "size": "120"},
		{"price": "0.53", "size": "40"},
		{"price": "0.48", "size": "300"}
	],
	"asks": [
		{"price": "0.60", "size": "80"},
		{"price": "0.55", "size": "1000"},
		{"price": "0.58", "size": "0"}
	],
	"tick_size": "0.01",
	"neg_risk": false
}`

func TestBestQuote_SortsLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tid_yes", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bookFixture))
	}))
	defer srv.Close()

	client := polymarket.NewClient(srv.URL)
	q, err := client.BestQuote(context.Background(), "tid_yes")
	require.NoError(t, err)

	assert.True(t, q.HasBid)
	assert.True(t, q.HasAsk)
	assert.InDelta(t, 0.53, q.BestBid, 1e-9)
	assert.InDelta(t, 40, q.BestBidSize, 1e-9)
	assert.InDelta(t, 0.55, q.BestAsk, 1e-9)
	assert.InDelta(t, 1000, q.BestAskSize, 1e-9)
	assert.InDelta(t, 0.01, q.TickSize, 1e-12)
	assert.Equal(t, int64(1700000000123), q.Timestamp.UnixMilli())
}

func TestBestQuote_EmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asset_id":"tid","bids":[],"asks":[]}`))
	}))
	defer srv.Close()

	q, err := polymarket.NewClient(srv.URL).BestQuote(context.Background(), "tid")
	require.NoError(t, err)
	assert.False(t, q.HasBid)
	assert.False(t, q.HasAsk)
}

func TestBestQuotesForPair_BothLegs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("token_id") {
		case "yes":
			w.Write([]byte(`{"asset_id":"yes","bids":[{"price":"0.54","size":"10"}],"asks":[{"price":"0.55","size":"10"}]}`))
		case "no":
			w.Write([]byte(`{"asset_id":"no","bids":[{"price":"0.44","size":"10"}],"asks":[{"price":"0.46","size":"10"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	yes, no, err := polymarket.NewClient(srv.URL).BestQuotesForPair(context.Background(), "yes", "no")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, yes.BestAsk, 1e-9)
	assert.InDelta(t, 0.46, no.BestAsk, 1e-9)
}

func TestBestQuotesForPair_OneLegFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "no" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unknown token"}`))
			return
		}
		w.Write([]byte(`{"asset_id":"yes","bids":[],"asks":[{"price":"0.55","size":"10"}]}`))
	}))
	defer srv.Close()

	yes, no, err := polymarket.NewClient(srv.URL).BestQuotesForPair(context.Background(), "yes", "no")
	require.Error(t, err)
	assert.False(t, yes.HasAsk)
	assert.False(t, no.HasAsk)
}

func TestBestQuote_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"asset_id":"tid","bids":[],"asks":[{"price":"0.30","size":"5"}]}`))
	}))
	defer srv.Close()

	q, err := polymarket.NewClient(srv.URL).BestQuote(context.Background(), "tid")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 0.30, q.BestAsk, 1e-9)
}

func TestFeeRateBps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fee-rate", r.URL.Path)
		w.Write([]byte(`{"base_fee": 1000}`))
	}))
	defer srv.Close()

	bps, err := polymarket.NewClient(srv.URL).FeeRateBps(context.Background(), "tid")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bps)
}

func TestFeeRateBps_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	bps, err := polymarket.NewClient(srv.URL).FeeRateBps(context.Background(), "tid")
	require.NoError(t, err)
	assert.Zero(t, bps)
}

func TestTickSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tick-size", r.URL.Path)
		assert.Equal(t, "tid", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"minimum_tick_size": 0.001}`))
	}))
	defer srv.Close()

	tick, err := polymarket.NewClient(srv.URL).TickSize(context.Background(), "tid")
	require.NoError(t, err)
	assert.Equal(t, "0.001", tick.String())
}
