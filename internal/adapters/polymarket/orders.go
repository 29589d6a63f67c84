package polymarket

// orders.go: envío de órdenes al CLOB.
//
// Todo lo que firma o cancela pasa por un único mutex: nonce, expiración,
// fee, firma y POST ocurren en la misma sección crítica.

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

const (
	orderPath     = "/order"
	cancelAllPath = "/cancel-all"

	orderTypeGTC = "GTC"
	orderTypeGTD = "GTD"

	defaultTickSize = "0.01"

	// El CLOB rechaza expiraciones GTD a menos de un minuto vista; se
	// suma al lifetime pedido.
	gtdSecurityThreshold = 60
)

// QuoteConfig configures a QuoteClient.
type QuoteConfig struct {
	AuthConfig
	TickSize float64 // fallback when /tick-size has no answer; 0 → 0.01
}

// QuoteClient implements ports.QuoteProvider and ports.OrderExecutor.
type QuoteClient struct {
	*AuthClient

	mu       sync.Mutex
	tickSize decimal.Decimal
	ticks    map[string]decimal.Decimal
	negRisk  map[string]bool
	now      func() time.Time
	nonce    func() uint64
}

// NewQuoteClient builds the client without touching the network.
func NewQuoteClient(cfg QuoteConfig) (*QuoteClient, error) {
	auth, err := NewAuthClient(cfg.AuthConfig)
	if err != nil {
		return nil, err
	}

	tick := decimal.RequireFromString(defaultTickSize)
	if cfg.TickSize > 0 {
		tick = decimal.NewFromFloat(cfg.TickSize)
	}

	return &QuoteClient{
		AuthClient: auth,
		tickSize:   tick,
		ticks:      make(map[string]decimal.Decimal),
		negRisk:    make(map[string]bool),
		now:        time.Now,
		nonce:      randomNonce,
	}, nil
}

// randomNonce devuelve un uint32 aleatorio; el CLOB solo lo usa para
// distinguir órdenes idénticas.
func randomNonce() uint64 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano() & 0xffffffff)
	}
	return uint64(binary.BigEndian.Uint32(b[:]))
}

// SubmitLimitOrder valida, firma y envía una orden límite.
// El POST se hace una sola vez: una orden firmada nunca se reenvía.
func (qc *QuoteClient) SubmitLimitOrder(ctx context.Context, order domain.LimitOrder) (domain.OrderAck, error) {
	side, err := domain.ParseSide(string(order.Side))
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: %w", err)
	}
	if order.TokenID == "" {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: empty token id")
	}
	if order.Size <= 0 || order.Price <= 0 {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: invalid price %.6f / size %.6f", order.Price, order.Size)
	}

	localID := uuid.NewString()

	qc.mu.Lock()
	defer qc.mu.Unlock()

	if err := qc.EnsureCreds(ctx); err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: creds: %w", err)
	}

	feeBps, err := qc.FeeRateBps(ctx, order.TokenID)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: %w", err)
	}

	negRisk, err := qc.negRiskFor(ctx, order.TokenID)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: %w", err)
	}

	tick, err := qc.tickFor(ctx, order.TokenID)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: %w", err)
	}

	var expiration int64
	orderType := orderTypeGTC
	if order.ExpirationSeconds > 0 {
		expiration = qc.now().Unix() + gtdSecurityThreshold + int64(order.ExpirationSeconds)
		orderType = orderTypeGTD
	}

	signed, px, err := qc.buildSignedOrder(orderParams{
		TokenID:    order.TokenID,
		Side:       side,
		Price:      order.Price,
		Size:       order.Size,
		TickSize:   tick,
		FeeRateBps: feeBps,
		Nonce:      qc.nonce(),
		Expiration: expiration,
		NegRisk:    negRisk,
	})
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("clob.SubmitLimitOrder: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       order.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     qc.creds.APIKey,
		OrderType: orderType,
		PostOnly:  order.PostOnly,
	}

	slog.Debug("submitting order",
		"local_id", localID,
		"token", order.TokenID,
		"side", side,
		"price", px.String(),
		"tick", tick.String(),
		"size", order.Size,
		"maker_amount", formatUnits(signed.Order.MakerAmount.String()),
		"taker_amount", formatUnits(signed.Order.TakerAmount.String()),
		"order_type", orderType,
	)

	var resp clobOrderResponse
	if err := qc.doL2(ctx, http.MethodPost, orderPath, body, &resp, 0); err != nil {
		return domain.OrderAck{LocalID: localID}, fmt.Errorf("clob.SubmitLimitOrder: post: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.OrderAck{LocalID: localID, Status: resp.Status},
			fmt.Errorf("clob.SubmitLimitOrder: rejected: %s", resp.ErrorMsg)
	}

	return domain.OrderAck{
		LocalID:      localID,
		OrderID:      resp.OrderID,
		Status:       resp.Status,
		Success:      true,
		TakingAmount: parseAmount(resp.TakingAmount),
		MakingAmount: parseAmount(resp.MakingAmount),
	}, nil
}

// CancelAll cancela todas las órdenes abiertas de la wallet.
// Es idempotente, así que sí se reintenta.
func (qc *QuoteClient) CancelAll(ctx context.Context) error {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if err := qc.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("clob.CancelAll: creds: %w", err)
	}
	if err := qc.doL2(ctx, http.MethodDelete, cancelAllPath, nil, nil, maxRetries); err != nil {
		return fmt.Errorf("clob.CancelAll: %w", err)
	}
	return nil
}

// negRiskFor cachea el flag neg-risk por token; no cambia durante la vida
// de un mercado. Se llama con qc.mu tomado.
func (qc *QuoteClient) negRiskFor(ctx context.Context, tokenID string) (bool, error) {
	if v, ok := qc.negRisk[tokenID]; ok {
		return v, nil
	}
	v, err := qc.IsNegRisk(ctx, tokenID)
	if err != nil {
		return false, err
	}
	qc.negRisk[tokenID] = v
	return v, nil
}

// tickFor cachea el tick por token como negRiskFor. Si el CLOB no lo
// informa se usa el tick configurado. Se llama con qc.mu tomado.
func (qc *QuoteClient) tickFor(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	if v, ok := qc.ticks[tokenID]; ok {
		return v, nil
	}
	v, err := qc.TickSize(ctx, tokenID)
	if err != nil {
		return decimal.Zero, err
	}
	if v.Sign() <= 0 || v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		v = qc.tickSize
	}
	qc.ticks[tokenID] = v
	return v, nil
}

// parseAmount convierte los amounts de la respuesta; vacío o inválido → 0.
func parseAmount(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// formatUnits renders a 1e6-scaled integer amount for logs.
func formatUnits(v string) string {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return v
	}
	return decimal.New(n, -tokenDecimals).String()
}
