package domain

import "time"

// MarketConfig describes one binary market watched by the engine.
// Loaded once at startup; read-only afterwards.
type MarketConfig struct {
	MarketID     string  `yaml:"market_id"`
	YesTokenID   string  `yaml:"yes_token_id"`
	NoTokenID    string  `yaml:"no_token_id"`
	YesIsUpside  bool    `yaml:"yes_is_upside"` // YES pays if the underlying finishes higher
	Symbol       string  `yaml:"symbol"`        // reference pair, e.g. XBT/USDT
	ThresholdPct float64 `yaml:"threshold_pct"` // 0.02 = 2%
	MaxPosition  float64 `yaml:"max_position"`  // USDC exposure cap per direction
}

// RiskConfig holds process-wide trading limits.
type RiskConfig struct {
	MaxNotionalPerTrade   float64 `yaml:"max_notional_per_trade"`
	MaxTradesPerMinute    int     `yaml:"max_trades_per_minute"`
	SelfSlippageBufferPct float64 `yaml:"self_slippage_buffer_pct"`
}

// DefaultRiskConfig returns the limits applied when the config omits them.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxNotionalPerTrade:   100,
		MaxTradesPerMinute:    60,
		SelfSlippageBufferPct: 0.001,
	}
}

// Phase is the decision state of a market.
type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseArmed         Phase = "ARMED"
)

// MarketState is the mutable per-market state owned by the strategy engine.
// It is not safe for concurrent use; a single goroutine mutates it.
type MarketState struct {
	Config MarketConfig

	referencePrice float64
	referenceSet   bool

	LastTradeAt    time.Time
	TradesInMinute int
	MinuteBucket   int64
	Position       float64 // cumulative notional bought, USDC
}

// NewMarketState returns an uninitialized state for cfg.
func NewMarketState(cfg MarketConfig) *MarketState {
	return &MarketState{Config: cfg}
}

// Phase reports whether the market has a reference price yet.
func (s *MarketState) Phase() Phase {
	if !s.referenceSet {
		return PhaseUninitialized
	}
	return PhaseArmed
}

// ReferencePrice returns the current anchor and whether it is set.
func (s *MarketState) ReferencePrice() (float64, bool) {
	return s.referencePrice, s.referenceSet
}

// UpdateReference moves the anchor to price.
func (s *MarketState) UpdateReference(price float64) {
	s.referencePrice = price
	s.referenceSet = true
}

// Delta returns the relative move of price against the reference.
// ok is false when the reference is unset or not positive.
func (s *MarketState) Delta(price float64) (delta float64, ok bool) {
	if !s.referenceSet || s.referencePrice <= 0 {
		return 0, false
	}
	return (price - s.referencePrice) / s.referencePrice, true
}

// MinuteBucketOf returns the 60-second bucket index for now.
func MinuteBucketOf(now time.Time) int64 {
	return now.Unix() / 60
}

// CanTrade rolls the minute bucket if needed and reports whether another
// trade fits under maxPerMinute.
func (s *MarketState) CanTrade(now time.Time, maxPerMinute int) bool {
	bucket := MinuteBucketOf(now)
	if bucket != s.MinuteBucket {
		s.MinuteBucket = bucket
		s.TradesInMinute = 0
	}
	return s.TradesInMinute < maxPerMinute
}

// RegisterTrade records a submitted order of the given notional.
func (s *MarketState) RegisterTrade(notional float64, now time.Time) {
	s.LastTradeAt = now
	s.TradesInMinute++
	s.Position += notional
}

// RemainingExposure is the notional still available before MaxPosition.
func (s *MarketState) RemainingExposure() float64 {
	return s.Config.MaxPosition - s.Position
}

// Snapshot returns a read-only copy for reporting.
func (s *MarketState) Snapshot() MarketSnapshot {
	return MarketSnapshot{
		MarketID:       s.Config.MarketID,
		Symbol:         s.Config.Symbol,
		Phase:          s.Phase(),
		ReferencePrice: s.referencePrice,
		Position:       s.Position,
		MaxPosition:    s.Config.MaxPosition,
		TradesInMinute: s.TradesInMinute,
		LastTradeAt:    s.LastTradeAt,
	}
}

// MarketSnapshot is a point-in-time view of a MarketState.
type MarketSnapshot struct {
	MarketID       string
	Symbol         string
	Phase          Phase
	ReferencePrice float64
	Position       float64
	MaxPosition    float64
	TradesInMinute int
	LastTradeAt    time.Time
}
