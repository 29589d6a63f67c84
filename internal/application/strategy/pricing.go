package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

// minPriceFloor evita dividir por un precio degenerado en el clamp de exposición.
const minPriceFloor = 1e-6

// Direction is the sign of a reference-price move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// DirectionOf maps a delta to a direction; zero counts as down.
func DirectionOf(delta float64) Direction {
	if delta > 0 {
		return DirectionUp
	}
	return DirectionDown
}

// SelectLeg devuelve el token que paga si el movimiento acierta.
// yesIsUpside && up → YES; yesIsUpside && down → NO; y al revés.
func SelectLeg(m domain.MarketConfig, dir Direction) (tokenID string, yesLeg bool) {
	yesLeg = (dir == DirectionUp) == m.YesIsUpside
	if yesLeg {
		return m.YesTokenID, true
	}
	return m.NoTokenID, false
}

// TargetPrice applies the self-slippage buffer on the aggressive side.
// BUY crosses the ask, SELL hits the bid. ok is false when that side of
// the book is empty.
func TargetPrice(side domain.Side, q domain.Quote, buffer float64) (price float64, ok bool) {
	switch side {
	case domain.SideBuy:
		if !q.HasAsk || q.BestAsk <= 0 {
			return 0, false
		}
		return math.Min(1.0, q.BestAsk*(1+buffer)), true
	case domain.SideSell:
		if !q.HasBid || q.BestBid <= 0 {
			return 0, false
		}
		return math.Max(0.0, q.BestBid*(1-buffer)), true
	}
	return 0, false
}

// RoundToTick moves price onto the market's tick grid toward the
// aggressive side (up for BUY, down for SELL) and keeps it inside
// [tick, 1-tick]. A non-positive tick leaves price unchanged.
func RoundToTick(side domain.Side, price, tick float64) float64 {
	if tick <= 0 || tick >= 1 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	steps := decimal.NewFromFloat(price).Div(t)
	if side == domain.SideBuy {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	px := decimal.Max(t, decimal.Min(steps.Mul(t), decimal.NewFromInt(1).Sub(t)))
	f, _ := px.Float64()
	return f
}

// OrderSize starts from the smaller of the per-market cap and the
// per-trade cap, then limits it to the visible depth when known.
func OrderSize(maxPosition, maxNotional, depth float64) float64 {
	size := math.Min(maxPosition, maxNotional)
	if depth > 0 {
		size = math.Min(size, depth)
	}
	return size
}

// ClampToExposure caps size so that size × price never exceeds remaining.
// Returns 0 when there is no exposure left.
func ClampToExposure(size, remaining, price float64) float64 {
	if remaining <= 0 {
		return 0
	}
	return math.Min(size, remaining/math.Max(price, minPriceFloor))
}
