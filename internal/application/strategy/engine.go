package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/latencybot/internal/domain"
	"github.com/alejandrodnm/latencybot/internal/obs"
	"github.com/alejandrodnm/latencybot/internal/ports"
)

const (
	defaultExpirationSeconds = 60
	defaultSubmitTimeout     = 15 * time.Second
	cancelAllTimeout         = 10 * time.Second
)

// ErrAlreadyStarted is returned by Start when the engine is running.
var ErrAlreadyStarted = errors.New("strategy: engine already started")

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now; used by tests to drive minute buckets.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithOrderExpiration sets the GTD window passed with every order.
// 0 sends GTC orders.
func WithOrderExpiration(seconds int) Option {
	return func(e *Engine) { e.expirationSeconds = seconds }
}

// WithSubmitTimeout bounds a single order submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.submitTimeout = d
		}
	}
}

// Engine consumes reference ticks and turns threshold breaches into
// orders on the target venue.
type Engine struct {
	bySymbol map[string][]*domain.MarketState
	states   []*domain.MarketState // config order
	risk     domain.RiskConfig

	ticker ports.TickerStream
	quotes ports.QuoteProvider
	orders ports.OrderExecutor

	metrics           *obs.Metrics
	now               func() time.Time
	expirationSeconds int
	submitTimeout     time.Duration

	// stateMu serializa HandleTick con Snapshot.
	stateMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New builds the engine and one MarketState per market config.
// Risk fields left at zero take their defaults.
func New(
	markets []domain.MarketConfig,
	risk domain.RiskConfig,
	ticker ports.TickerStream,
	quotes ports.QuoteProvider,
	orders ports.OrderExecutor,
	opts ...Option,
) *Engine {
	def := domain.DefaultRiskConfig()
	if risk.MaxNotionalPerTrade <= 0 {
		risk.MaxNotionalPerTrade = def.MaxNotionalPerTrade
	}
	if risk.MaxTradesPerMinute < 1 {
		risk.MaxTradesPerMinute = def.MaxTradesPerMinute
	}
	if risk.SelfSlippageBufferPct < 0 {
		risk.SelfSlippageBufferPct = def.SelfSlippageBufferPct
	}

	e := &Engine{
		bySymbol:          make(map[string][]*domain.MarketState),
		risk:              risk,
		ticker:            ticker,
		quotes:            quotes,
		orders:            orders,
		now:               time.Now,
		expirationSeconds: defaultExpirationSeconds,
		submitTimeout:     defaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, cfg := range markets {
		st := domain.NewMarketState(cfg)
		key := symbolKey(cfg.Symbol)
		e.bySymbol[key] = append(e.bySymbol[key], st)
		e.states = append(e.states, st)
	}
	return e
}

func symbolKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Start subscribes to the ticker and launches the single consumer goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticks := e.ticker.Stream(runCtx)
	e.cancel = cancel
	e.done = make(chan struct{})

	slog.Info("strategy: started", "markets", len(e.states), "symbols", len(e.bySymbol))
	go e.run(runCtx, ticks, e.done)
	return nil
}

// Done is closed when the consumer goroutine exits. Nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *Engine) run(ctx context.Context, ticks <-chan domain.PriceTick, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				slog.Info("strategy: ticker stream closed")
				return
			}
			e.HandleTick(ctx, tick)
		}
	}
}

// Stop ends the ticker, waits for the tick in progress (including any
// order submission) and then cancels every open order. Only the first
// call has effect; later calls return the same result.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.ticker.Stop()

		e.mu.Lock()
		cancel, done := e.cancel, e.done
		e.mu.Unlock()

		if cancel != nil {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				slog.Warn("strategy: stop deadline reached before consumer exited")
			}
		}

		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), cancelAllTimeout)
		defer ccancel()
		if err := e.orders.CancelAll(cctx); err != nil {
			slog.Warn("strategy: cancel-all on shutdown failed", "err", err)
			e.stopErr = fmt.Errorf("strategy.Stop: %w", err)
			return
		}
		slog.Info("strategy: stopped, open orders cancelled")
	})
	return e.stopErr
}

// HandleTick evaluates tick against every market of its symbol, in config
// order, and returns one decision per market.
func (e *Engine) HandleTick(ctx context.Context, tick domain.PriceTick) []Decision {
	e.metrics.IncTick()
	if tick.Price <= 0 || math.IsNaN(tick.Price) || math.IsInf(tick.Price, 0) {
		slog.Debug("strategy: ignoring tick without price", "pair", tick.Pair)
		return nil
	}

	states := e.bySymbol[symbolKey(tick.Pair)]
	if len(states) == 0 {
		return nil
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	now := e.now()
	decisions := make([]Decision, 0, len(states))
	for _, st := range states {
		d := e.evaluate(ctx, st, tick, now)
		if d.Outcome.ResetsReference() {
			st.UpdateReference(tick.Price)
		}
		e.metrics.IncOutcome(string(d.Outcome))
		logDecision(st, tick, now, d)
		decisions = append(decisions, d)
	}
	return decisions
}

// evaluate runs the decision steps for one market. It never touches the
// reference price; HandleTick does that from the outcome.
func (e *Engine) evaluate(ctx context.Context, st *domain.MarketState, tick domain.PriceTick, now time.Time) Decision {
	cfg := st.Config
	d := Decision{MarketID: cfg.MarketID}

	if st.Phase() == domain.PhaseUninitialized {
		d.Outcome = OutcomeWarmup
		return d
	}

	delta, ok := st.Delta(tick.Price)
	if !ok {
		d.Outcome = OutcomeInvalidReference
		return d
	}
	d.Delta = delta
	d.Direction = DirectionOf(delta)

	if math.Abs(delta) < cfg.ThresholdPct {
		d.Outcome = OutcomeBelowThreshold
		return d
	}
	e.metrics.IncTrigger()

	if !st.CanTrade(now, e.risk.MaxTradesPerMinute) {
		d.Outcome = OutcomeThrottled
		return d
	}

	yesQuote, noQuote, err := e.quotes.BestQuotesForPair(ctx, cfg.YesTokenID, cfg.NoTokenID)
	if err != nil {
		e.metrics.IncQuoteError()
		d.Outcome = OutcomeQuoteError
		d.Err = err
		return d
	}

	tokenID, yesLeg := SelectLeg(cfg, d.Direction)
	d.TokenID = tokenID
	quote := noQuote
	if yesLeg {
		quote = yesQuote
	}

	target, ok := TargetPrice(domain.SideBuy, quote, e.risk.SelfSlippageBufferPct)
	if !ok {
		d.Outcome = OutcomeNoAsk
		return d
	}
	// el exposure cap se calcula sobre el precio que de verdad se firma
	target = RoundToTick(domain.SideBuy, target, quote.TickSize)
	d.TargetPrice = target

	size := OrderSize(cfg.MaxPosition, e.risk.MaxNotionalPerTrade, quote.BestAskSize)

	remaining := st.RemainingExposure()
	if remaining <= 0 {
		d.Outcome = OutcomeMaxPosition
		return d
	}
	size = ClampToExposure(size, remaining, target)
	d.Size = size
	if size <= 0 {
		d.Outcome = OutcomeZeroSize
		return d
	}

	order := domain.LimitOrder{
		TokenID:           tokenID,
		Side:              domain.SideBuy,
		Price:             target,
		Size:              size,
		ExpirationSeconds: e.expirationSeconds,
		PostOnly:          false,
	}
	ack, err := e.submit(ctx, order)
	if err != nil {
		d.Outcome = OutcomeOrderFailed
		d.Err = err
		return d
	}

	st.RegisterTrade(order.Notional(), now)
	d.OrderID = ack.OrderID
	d.Outcome = OutcomeOrderPlaced
	return d
}

// submit detaches the order from cancellation so shutdown never cuts a
// submission in the middle of signing; only the timeout bounds it.
func (e *Engine) submit(ctx context.Context, order domain.LimitOrder) (domain.OrderAck, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.submitTimeout)
	defer cancel()

	start := time.Now()
	ack, err := e.orders.SubmitLimitOrder(sctx, order)
	e.metrics.ObserveOrder(time.Since(start), err)
	return ack, err
}

func logDecision(st *domain.MarketState, tick domain.PriceTick, now time.Time, d Decision) {
	attrs := []any{
		"market", d.MarketID,
		"outcome", d.Outcome,
		"price", tick.Price,
		"delta", fmt.Sprintf("%.4f%%", d.Delta*100),
	}
	if d.TokenID != "" {
		attrs = append(attrs, "direction", d.Direction, "token", d.TokenID)
	}
	if d.TargetPrice > 0 {
		attrs = append(attrs, "target", d.TargetPrice, "size", d.Size)
	}

	switch d.Outcome {
	case OutcomeWarmup, OutcomeBelowThreshold:
		slog.Debug("strategy: tick", attrs...)
	case OutcomeQuoteError, OutcomeOrderFailed:
		slog.Warn("strategy: trigger aborted", append(attrs, "err", d.Err)...)
	case OutcomeOrderPlaced:
		if tick.EventTimeMs > 0 {
			attrs = append(attrs, "tick_age", now.Sub(tick.EventTime()))
		}
		slog.Info("strategy: order placed", append(attrs,
			"order_id", d.OrderID,
			"position", fmt.Sprintf("%.2f/%.2f", st.Position, st.Config.MaxPosition),
		)...)
	default:
		slog.Info("strategy: trigger skipped", attrs...)
	}
}

// Snapshot returns the state of every market in config order.
func (e *Engine) Snapshot() []domain.MarketSnapshot {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	out := make([]domain.MarketSnapshot, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st.Snapshot())
	}
	return out
}
