package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/latencybot/internal/application/strategy"
	"github.com/alejandrodnm/latencybot/internal/domain"
)

func TestTargetPrice(t *testing.T) {
	q := domain.Quote{BestBid: 0.40, BestAsk: 0.50, HasBid: true, HasAsk: true}

	p, ok := strategy.TargetPrice(domain.SideBuy, q, 0.01)
	assert.True(t, ok)
	assert.InDelta(t, 0.505, p, 1e-12)

	p, ok = strategy.TargetPrice(domain.SideSell, q, 0.01)
	assert.True(t, ok)
	assert.InDelta(t, 0.396, p, 1e-12)

	// el buffer nunca empuja el precio fuera de [0, 1]
	p, ok = strategy.TargetPrice(domain.SideBuy, domain.Quote{BestAsk: 0.999, HasAsk: true}, 0.5)
	assert.True(t, ok)
	assert.Equal(t, 1.0, p)

	p, ok = strategy.TargetPrice(domain.SideSell, domain.Quote{BestBid: 0.2, HasBid: true}, 2)
	assert.True(t, ok)
	assert.Equal(t, 0.0, p)

	_, ok = strategy.TargetPrice(domain.SideBuy, domain.Quote{BestBid: 0.4, HasBid: true}, 0.01)
	assert.False(t, ok)
	_, ok = strategy.TargetPrice(domain.SideSell, domain.Quote{BestAsk: 0.4, HasAsk: true}, 0.01)
	assert.False(t, ok)
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name  string
		side  domain.Side
		price float64
		tick  float64
		want  float64
	}{
		{"buy ceils", domain.SideBuy, 0.55055, 0.01, 0.56},
		{"buy fine tick", domain.SideBuy, 0.555 * 1.001, 0.001, 0.556},
		{"buy near one", domain.SideBuy, 0.995 * 1.001, 0.001, 0.996},
		{"buy clamps to 1-tick", domain.SideBuy, 1.0, 0.01, 0.99},
		{"sell floors", domain.SideSell, 0.421, 0.01, 0.42},
		{"sell clamps to tick", domain.SideSell, 0.004, 0.01, 0.01},
		{"on grid", domain.SideBuy, 0.37, 0.01, 0.37},
		{"unknown tick", domain.SideBuy, 0.55055, 0, 0.55055},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, strategy.RoundToTick(tc.side, tc.price, tc.tick), 1e-12)
		})
	}
}

func TestOrderSize(t *testing.T) {
	assert.Equal(t, 100.0, strategy.OrderSize(500, 100, 0))
	assert.Equal(t, 40.0, strategy.OrderSize(40, 100, 0))
	assert.Equal(t, 12.0, strategy.OrderSize(500, 100, 12))
	assert.Equal(t, 100.0, strategy.OrderSize(500, 100, 1000))
}

func TestClampToExposure(t *testing.T) {
	size := strategy.ClampToExposure(50, 500-480, 0.60)
	assert.InDelta(t, 33.3333, size, 1e-3)
	assert.LessOrEqual(t, size*0.60, 20+1e-9)

	assert.Equal(t, 10.0, strategy.ClampToExposure(10, 100, 0.5))
	assert.Zero(t, strategy.ClampToExposure(10, 0, 0.5))
	assert.Zero(t, strategy.ClampToExposure(10, -5, 0.5))

	// precio degenerado: el piso evita dividir por cero
	assert.Equal(t, 10.0, strategy.ClampToExposure(10, 1, 0))
}

func TestSelectLeg(t *testing.T) {
	m := domain.MarketConfig{YesTokenID: "y", NoTokenID: "n", YesIsUpside: true}

	tok, yes := strategy.SelectLeg(m, strategy.DirectionUp)
	assert.Equal(t, "y", tok)
	assert.True(t, yes)

	tok, yes = strategy.SelectLeg(m, strategy.DirectionDown)
	assert.Equal(t, "n", tok)
	assert.False(t, yes)

	m.YesIsUpside = false
	tok, _ = strategy.SelectLeg(m, strategy.DirectionUp)
	assert.Equal(t, "n", tok)
}

func TestOutcomeResetsReference(t *testing.T) {
	assert.False(t, strategy.OutcomeBelowThreshold.ResetsReference())
	assert.False(t, strategy.OutcomeThrottled.ResetsReference())
	for _, o := range []strategy.Outcome{
		strategy.OutcomeWarmup, strategy.OutcomeInvalidReference, strategy.OutcomeQuoteError,
		strategy.OutcomeNoAsk, strategy.OutcomeMaxPosition, strategy.OutcomeZeroSize,
		strategy.OutcomeOrderFailed, strategy.OutcomeOrderPlaced,
	} {
		assert.True(t, o.ResetsReference(), o)
	}
}
