package ports

import (
	"context"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

// QuoteProvider obtiene el top of book del CLOB, siempre en vivo.
type QuoteProvider interface {
	BestQuote(ctx context.Context, tokenID string) (domain.Quote, error)

	// BestQuotesForPair fetches both legs concurrently. Either both quotes
	// are returned or an error; never one leg alone.
	BestQuotesForPair(ctx context.Context, tokenA, tokenB string) (domain.Quote, domain.Quote, error)
}
