package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

const (
	// EnvConfigPath se usa cuando no se pasa -config.
	EnvConfigPath     = "LATENCY_BOT_CONFIG"
	defaultConfigPath = "config.yaml"

	defaultKrakenWS      = "wss://ws.kraken.com"
	defaultKrakenPair    = "XBT/USDT"
	defaultPolymarketWS  = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	defaultPolymarketAPI = "https://clob.polymarket.com"
	defaultChainID       = 137
	defaultMetricsPort   = 9100
	defaultExpiration    = 60
	defaultTickSize      = 0.01

	defaultThresholdPct = 0.02
	defaultMaxPosition  = 500
)

// Config es la configuración completa del bot. Se lee una vez al arrancar.
type Config struct {
	KrakenWSURL      string
	KrakenPair       string
	PolymarketWSURL  string // no lo usa el core; queda para colaboradores externos
	PolymarketAPIURL string

	PrivateKey    string
	APIKey        string
	APISecret     string
	APIPassphrase string

	PolygonRPCURL  string // opcional: preflight de saldo
	PolygonChainID int64

	Markets []domain.MarketConfig
	Risk    domain.RiskConfig

	LogLevel  string
	LogFormat string

	MetricsPort            int // 0 desactiva el endpoint
	OrderExpirationSeconds int // 0 → órdenes GTC
	TickSize               float64
}

// fileConfig refleja el YAML. Los punteros distinguen "ausente" de un 0 explícito.
type fileConfig struct {
	KrakenWSURL            string       `yaml:"kraken_ws_url"`
	KrakenPair             string       `yaml:"kraken_pair"`
	PolymarketWSURL        string       `yaml:"polymarket_ws_url"`
	PolymarketAPIURL       string       `yaml:"polymarket_api_url"`
	PrivateKey             string       `yaml:"private_key"`
	APIKey                 string       `yaml:"api_key"`
	APISecret              string       `yaml:"api_secret"`
	APIPassphrase          string       `yaml:"api_passphrase"`
	PolygonRPCURL          string       `yaml:"polygon_rpc_url"`
	PolygonChainID         int64        `yaml:"polygon_chain_id"`
	Markets                []fileMarket `yaml:"markets"`
	Risk                   fileRisk     `yaml:"risk"`
	LogLevel               string       `yaml:"log_level"`
	LogFormat              string       `yaml:"log_format"`
	MetricsPort            *int         `yaml:"metrics_port"`
	OrderExpirationSeconds *int         `yaml:"order_expiration_seconds"`
	TickSize               float64      `yaml:"tick_size"`
}

type fileMarket struct {
	MarketID     string   `yaml:"market_id"`
	YesTokenID   string   `yaml:"yes_token_id"`
	NoTokenID    string   `yaml:"no_token_id"`
	YesIsUpside  *bool    `yaml:"yes_is_upside"`
	Symbol       string   `yaml:"symbol"`
	ThresholdPct *float64 `yaml:"threshold_pct"`
	MaxPosition  *float64 `yaml:"max_position"`
}

type fileRisk struct {
	MaxNotionalPerTrade   *float64 `yaml:"max_notional_per_trade"`
	MaxTradesPerMinute    *int     `yaml:"max_trades_per_minute"`
	SelfSlippageBufferPct *float64 `yaml:"self_slippage_buffer_pct"`
}

// ResolvePath elige el archivo: flag, luego LATENCY_BOT_CONFIG, luego config.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return defaultConfigPath
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	return Parse(data)
}

// Parse construye la configuración a partir del YAML crudo.
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &fc); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	cfg := fromFile(fc)
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv sustituye ${VAR} por su valor; variables ausentes quedan vacías.
// "$VAR" sin llaves no se toca.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRef.FindStringSubmatch(m)[1])
	})
}

func fromFile(fc fileConfig) *Config {
	def := domain.DefaultRiskConfig()
	cfg := &Config{
		KrakenWSURL:            fc.KrakenWSURL,
		KrakenPair:             fc.KrakenPair,
		PolymarketWSURL:        fc.PolymarketWSURL,
		PolymarketAPIURL:       fc.PolymarketAPIURL,
		PrivateKey:             fc.PrivateKey,
		APIKey:                 fc.APIKey,
		APISecret:              fc.APISecret,
		APIPassphrase:          fc.APIPassphrase,
		PolygonRPCURL:          fc.PolygonRPCURL,
		PolygonChainID:         fc.PolygonChainID,
		LogLevel:               fc.LogLevel,
		LogFormat:              fc.LogFormat,
		MetricsPort:            intOr(fc.MetricsPort, defaultMetricsPort),
		OrderExpirationSeconds: intOr(fc.OrderExpirationSeconds, defaultExpiration),
		TickSize:               fc.TickSize,
		Risk: domain.RiskConfig{
			MaxNotionalPerTrade:   floatOr(fc.Risk.MaxNotionalPerTrade, def.MaxNotionalPerTrade),
			MaxTradesPerMinute:    intOr(fc.Risk.MaxTradesPerMinute, def.MaxTradesPerMinute),
			SelfSlippageBufferPct: floatOr(fc.Risk.SelfSlippageBufferPct, def.SelfSlippageBufferPct),
		},
	}

	for _, m := range fc.Markets {
		yesUp := true
		if m.YesIsUpside != nil {
			yesUp = *m.YesIsUpside
		}
		cfg.Markets = append(cfg.Markets, domain.MarketConfig{
			MarketID:     m.MarketID,
			YesTokenID:   m.YesTokenID,
			NoTokenID:    m.NoTokenID,
			YesIsUpside:  yesUp,
			Symbol:       m.Symbol,
			ThresholdPct: floatOr(m.ThresholdPct, defaultThresholdPct),
			MaxPosition:  floatOr(m.MaxPosition, defaultMaxPosition),
		})
	}
	return cfg
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.PrivateKey = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("POLY_API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("POLY_API_PASSPHRASE"); v != "" {
		cfg.APIPassphrase = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.KrakenWSURL == "" {
		cfg.KrakenWSURL = defaultKrakenWS
	}
	if cfg.KrakenPair == "" {
		cfg.KrakenPair = defaultKrakenPair
	}
	if cfg.PolymarketWSURL == "" {
		cfg.PolymarketWSURL = defaultPolymarketWS
	}
	if cfg.PolymarketAPIURL == "" {
		cfg.PolymarketAPIURL = defaultPolymarketAPI
	}
	if cfg.PolygonChainID == 0 {
		cfg.PolygonChainID = defaultChainID
	}
	if cfg.TickSize <= 0 {
		cfg.TickSize = defaultTickSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	for i := range cfg.Markets {
		if cfg.Markets[i].Symbol == "" {
			cfg.Markets[i].Symbol = cfg.KrakenPair
		}
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true, "critical": true,
}

// Validate devuelve todos los problemas juntos para arreglarlos de una vez.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := checkURL(c.KrakenWSURL, "ws", "wss"); err != nil {
		add("kraken_ws_url: %w", err)
	}
	if c.KrakenPair == "" {
		add("kraken_pair is required")
	}
	if err := checkURL(c.PolymarketAPIURL, "http", "https"); err != nil {
		add("polymarket_api_url: %w", err)
	}
	if c.PolygonRPCURL != "" {
		if err := checkURL(c.PolygonRPCURL, "http", "https", "ws", "wss"); err != nil {
			add("polygon_rpc_url: %w", err)
		}
	}
	if c.PolygonChainID <= 0 {
		add("polygon_chain_id must be positive")
	}

	if c.PrivateKey == "" {
		add("private_key is required (or POLY_PRIVATE_KEY)")
	} else if !validPrivateKey(c.PrivateKey) {
		add("private_key must be 32 bytes of hex")
	}
	set := 0
	for _, v := range []string{c.APIKey, c.APISecret, c.APIPassphrase} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		add("api_key, api_secret and api_passphrase must be set together or left empty")
	}

	if len(c.Markets) == 0 {
		add("at least one market is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		switch {
		case m.MarketID == "":
			add("markets[%d]: market_id is required", i)
		case seen[m.MarketID]:
			add("markets[%d]: duplicate market_id %q", i, m.MarketID)
		}
		seen[m.MarketID] = true

		if m.YesTokenID == "" || m.NoTokenID == "" {
			add("markets[%d]: yes_token_id and no_token_id are required", i)
		} else if m.YesTokenID == m.NoTokenID {
			add("markets[%d]: yes_token_id and no_token_id must differ", i)
		}
		if m.ThresholdPct < 0 {
			add("markets[%d]: threshold_pct must be >= 0", i)
		}
		if m.MaxPosition < 0 {
			add("markets[%d]: max_position must be >= 0", i)
		}
	}

	if c.Risk.MaxNotionalPerTrade <= 0 {
		add("risk.max_notional_per_trade must be positive")
	}
	if c.Risk.MaxTradesPerMinute < 1 {
		add("risk.max_trades_per_minute must be >= 1")
	}
	if c.Risk.SelfSlippageBufferPct < 0 {
		add("risk.self_slippage_buffer_pct must be >= 0")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("log_level %q is not one of debug|info|warn|error|critical", c.LogLevel)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		add("log_format %q must be text or json", c.LogFormat)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		add("metrics_port %d out of range", c.MetricsPort)
	}
	if c.OrderExpirationSeconds < 0 {
		add("order_expiration_seconds must be >= 0")
	}
	if c.TickSize <= 0 || c.TickSize >= 1 {
		add("tick_size must be in (0, 1)")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// HasAPICredentials reports whether the L2 triple is configured.
func (c *Config) HasAPICredentials() bool {
	return c.APIKey != "" && c.APISecret != "" && c.APIPassphrase != ""
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme %q not in %v", u.Scheme, schemes)
}

func validPrivateKey(k string) bool {
	b, err := hex.DecodeString(strings.TrimPrefix(k, "0x"))
	return err == nil && len(b) == 32
}
