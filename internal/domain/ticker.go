package domain

import "time"

// PriceTick is one normalized ticker update from the reference venue.
// Produced once per parsed feed message and discarded after processing.
type PriceTick struct {
	Pair        string
	Price       float64
	BestBid     float64
	BestAsk     float64
	EventTimeMs int64
}

// EventTime returns the tick timestamp as time.Time.
func (t PriceTick) EventTime() time.Time {
	return time.UnixMilli(t.EventTimeMs)
}
