package polymarket

// book.go: top of book del CLOB.
//
// Cada quote es un GET /book en vivo: no hay caché porque un precio viejo
// cuesta dinero. El par YES/NO se pide en paralelo y se une antes de
// devolver; si falla una pata, falla el par.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

const (
	bookPath    = "/book"
	feeRatePath = "/fee-rate"
	negRiskPath = "/neg-risk"
	tickPath    = "/tick-size"
)

// FetchOrderBook obtiene el orderbook completo de un token.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, url.QueryEscape(tokenID))

	var resp orderBookResponse
	if err := c.get(ctx, c.booksLimiter, u, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook %s: %w", tokenID, err)
	}
	ob := mapOrderBook(resp)
	if ob.TokenID == "" {
		ob.TokenID = tokenID
	}
	return ob, nil
}

// BestQuote devuelve el best bid/ask de un token.
func (c *Client) BestQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	ob, err := c.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, err
	}
	return ob.Quote(), nil
}

// BestQuotesForPair pide las dos patas en paralelo. Devuelve ambos quotes o
// un error; nunca una pata sola.
func (c *Client) BestQuotesForPair(ctx context.Context, tokenA, tokenB string) (domain.Quote, domain.Quote, error) {
	var qa, qb domain.Quote
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, err := c.BestQuote(gctx, tokenA)
		if err != nil {
			return err
		}
		qa = q
		return nil
	})
	g.Go(func() error {
		q, err := c.BestQuote(gctx, tokenB)
		if err != nil {
			return err
		}
		qb = q
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Quote{}, domain.Quote{}, fmt.Errorf("clob.BestQuotesForPair: %w", err)
	}

	slog.Debug("quotes fetched",
		"token_a", tokenA, "ask_a", qa.BestAsk, "bid_a", qa.BestBid,
		"token_b", tokenB, "ask_b", qb.BestAsk, "bid_b", qb.BestBid,
	)
	return qa, qb, nil
}

// FeeRateBps devuelve el fee base (bps) que el CLOB exige firmar en la orden.
func (c *Client) FeeRateBps(ctx context.Context, tokenID string) (int64, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, feeRatePath, url.QueryEscape(tokenID))

	var resp feeRateResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("clob.FeeRateBps %s: %w", tokenID, err)
	}
	if resp.BaseFee == "" {
		return 0, nil
	}
	bps, err := resp.BaseFee.Int64()
	if err != nil {
		return 0, fmt.Errorf("clob.FeeRateBps %s: parse %q: %w", tokenID, resp.BaseFee, err)
	}
	return bps, nil
}

// IsNegRisk consulta si el token usa el NegRisk adapter.
func (c *Client) IsNegRisk(ctx context.Context, tokenID string) (bool, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, negRiskPath, url.QueryEscape(tokenID))

	var resp negRiskResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return false, fmt.Errorf("clob.IsNegRisk %s: %w", tokenID, err)
	}
	return resp.NegRisk, nil
}

// TickSize devuelve el tick mínimo del token. Cero si el CLOB no lo informa.
func (c *Client) TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, tickPath, url.QueryEscape(tokenID))

	var resp tickSizeResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("clob.TickSize %s: %w", tokenID, err)
	}
	if resp.MinimumTickSize == "" {
		return decimal.Zero, nil
	}
	tick, err := decimal.NewFromString(resp.MinimumTickSize.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("clob.TickSize %s: parse %q: %w", tokenID, resp.MinimumTickSize, err)
	}
	return tick, nil
}
