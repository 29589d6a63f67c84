package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide is returned for any side other than BUY or SELL.
var ErrInvalidSide = errors.New("side must be BUY or SELL")

// Side is the order action on the target venue.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes s and rejects unknown values.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidSide, s)
}

// LimitOrder is a request to the order executor.
// Price is per share in [0,1]; Size is in shares.
type LimitOrder struct {
	TokenID           string
	Side              Side
	Price             float64
	Size              float64
	ExpirationSeconds int
	PostOnly          bool
}

// Notional returns Price × Size in USDC.
func (o LimitOrder) Notional() float64 {
	return o.Price * o.Size
}

// OrderAck is the venue's answer to a submitted order.
type OrderAck struct {
	LocalID      string // uuid for log correlation
	OrderID      string
	Status       string
	Success      bool
	TakingAmount float64
	MakingAmount float64
}
