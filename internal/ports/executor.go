package ports

import (
	"context"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

// OrderExecutor signs and submits orders on the target venue.
// Implementations serialize every call through one critical section.
type OrderExecutor interface {
	// SubmitLimitOrder validates, signs and posts a single limit order.
	SubmitLimitOrder(ctx context.Context, order domain.LimitOrder) (domain.OrderAck, error)

	// CancelAll cancels all open orders for this wallet.
	CancelAll(ctx context.Context) error
}
