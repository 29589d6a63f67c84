package strategy

// Outcome is how one market's evaluation of one tick ended.
type Outcome string

const (
	OutcomeWarmup           Outcome = "warmup"
	OutcomeInvalidReference Outcome = "invalid_reference"
	OutcomeBelowThreshold   Outcome = "below_threshold"
	OutcomeThrottled        Outcome = "throttled"
	OutcomeQuoteError       Outcome = "quote_error"
	OutcomeNoAsk            Outcome = "no_ask"
	OutcomeMaxPosition      Outcome = "max_position"
	OutcomeZeroSize         Outcome = "zero_size"
	OutcomeOrderFailed      Outcome = "order_failed"
	OutcomeOrderPlaced      Outcome = "order_placed"
)

// ResetsReference reports whether the anchor moves to the tick price.
// Sub-threshold ticks keep the anchor fixed; throttled breaches keep it so
// the same move is retried once the rate limit clears.
func (o Outcome) ResetsReference() bool {
	switch o {
	case OutcomeBelowThreshold, OutcomeThrottled:
		return false
	}
	return true
}

// Decision records what the engine did for one market on one tick.
type Decision struct {
	MarketID    string
	Outcome     Outcome
	Direction   Direction
	Delta       float64
	TokenID     string
	TargetPrice float64
	Size        float64
	OrderID     string
	Err         error
}
