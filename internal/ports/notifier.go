package ports

import (
	"github.com/alejandrodnm/latencybot/internal/domain"
	"github.com/alejandrodnm/latencybot/internal/obs"
)

// Notifier renders the end-of-run report: per-market summary and process
// counters.
type Notifier interface {
	PrintSummary(markets []domain.MarketSnapshot)
	PrintStats(stats obs.Snapshot)
}
