package polymarket

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

func TestOrderAmounts(t *testing.T) {
	tick := decimal.RequireFromString("0.01")

	tests := []struct {
		name      string
		side      domain.Side
		price     float64
		size      float64
		wantPx    string
		wantMaker string
		wantTaker string
	}{
		{"buy ceils to tick and keeps notional", domain.SideBuy, 0.55055, 100, "0.56", "55053600", "98310000"},
		{"sell floors to tick", domain.SideSell, 0.421, 10.129, "0.42", "10120000", "4250400"},
		{"buy clamps to 1-tick", domain.SideBuy, 1.0, 10, "0.99", "9900000", "10000000"},
		{"sell clamps to tick", domain.SideSell, 0.001, 10, "0.01", "10000000", "100000"},
		{"exact tick kept", domain.SideBuy, 0.37, 33.333, "0.37", "12332100", "33330000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			maker, taker, px, err := orderAmounts(tc.side, tc.price, tc.size, tick)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPx, px.String())
			assert.Equal(t, tc.wantMaker, maker.String())
			assert.Equal(t, tc.wantTaker, taker.String())
		})
	}
}

func TestOrderAmounts_FineTickBuyCrossesAsk(t *testing.T) {
	tick := decimal.RequireFromString("0.001")

	tests := []struct {
		name      string
		ask       float64
		wantPx    string
		wantMaker string
	}{
		{"mid book", 0.555, "0.556", "5554440"},
		{"near one", 0.995, "0.996", "9950040"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			limit := tc.ask * 1.001
			maker, taker, px, err := orderAmounts(domain.SideBuy, limit, 10, tick)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPx, px.String())
			assert.True(t, px.GreaterThanOrEqual(decimal.NewFromFloat(tc.ask)), "limit must reach the ask")
			assert.Equal(t, tc.wantMaker, maker.String())
			assert.Equal(t, "9990000", taker.String())
			assert.True(t, maker.LessThanOrEqual(decimal.NewFromFloat(limit*10).Shift(tokenDecimals)),
				"rounding up never spends more than price × size")
		})
	}
}

func TestOrderAmounts_ZeroShares(t *testing.T) {
	_, _, _, err := orderAmounts(domain.SideBuy, 0.5, 0.004, decimal.RequireFromString("0.01"))
	assert.Error(t, err)
}

func TestOrderAmounts_DefaultTick(t *testing.T) {
	_, _, px, err := orderAmounts(domain.SideBuy, 0.456, 1, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0.46", px.String())
}

func TestL2Headers_RequireCreds(t *testing.T) {
	ac, err := NewAuthClient(AuthConfig{
		PrivateKeyHex: "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	})
	require.NoError(t, err)

	_, err = ac.l2Headers("GET", "/orders", "")
	assert.Error(t, err)
}
