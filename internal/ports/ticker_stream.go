package ports

import (
	"context"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

// TickerStream delivers reference-venue ticks in arrival order.
type TickerStream interface {
	// Stream starts delivering ticks. The channel is closed after Stop or
	// when ctx is cancelled.
	Stream(ctx context.Context) <-chan domain.PriceTick

	// Stop ends the stream and suppresses reconnects. Safe to call twice.
	Stop()
}
