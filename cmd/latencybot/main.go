package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/latencybot/config"
	"github.com/alejandrodnm/latencybot/internal/adapters/kraken"
	"github.com/alejandrodnm/latencybot/internal/adapters/notify"
	"github.com/alejandrodnm/latencybot/internal/adapters/polymarket"
	"github.com/alejandrodnm/latencybot/internal/application/strategy"
	"github.com/alejandrodnm/latencybot/internal/obs"
	"github.com/alejandrodnm/latencybot/internal/ports"
)

const (
	shutdownTimeout  = 30 * time.Second
	preflightTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: $LATENCY_BOT_CONFIG or config.yaml)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", true, "print the shutdown summary as a table")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", path)
		os.Exit(1)
	}

	if *verbose {
		cfg.LogLevel = "debug"
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	// Config inválida = salir antes de abrir cualquier conexión.
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err, "path", path)
		os.Exit(1)
	}

	metrics := obs.NewMetrics()

	qc, err := polymarket.NewQuoteClient(polymarket.QuoteConfig{
		AuthConfig: polymarket.AuthConfig{
			CLOBBase:      cfg.PolymarketAPIURL,
			ChainID:       cfg.PolygonChainID,
			PrivateKeyHex: cfg.PrivateKey,
			Creds: polymarket.APICredentials{
				APIKey:     cfg.APIKey,
				Secret:     cfg.APISecret,
				Passphrase: cfg.APIPassphrase,
			},
		},
		TickSize: cfg.TickSize,
	})
	if err != nil {
		slog.Error("failed to build polymarket client", "err", err)
		os.Exit(1)
	}

	slog.Info("latencybot starting",
		"config", path,
		"pair", cfg.KrakenPair,
		"markets", len(cfg.Markets),
		"wallet", qc.Address(),
		"chain_id", cfg.PolygonChainID,
		"max_notional", cfg.Risk.MaxNotionalPerTrade,
		"max_trades_per_minute", cfg.Risk.MaxTradesPerMinute,
		"derive_creds", !cfg.HasAPICredentials(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := qc.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials", "err", err)
		os.Exit(1)
	}

	if cfg.PolygonRPCURL != "" {
		checkBalance(ctx, cfg.PolygonRPCURL, qc.Address())
	}

	if cfg.MetricsPort > 0 {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		go func() {
			if err := obs.Serve(ctx, addr, metrics); err != nil {
				slog.Warn("metrics server stopped", "err", err, "addr", addr)
			}
		}()
		slog.Info("metrics endpoint", "addr", addr+"/metrics")
	}

	kcfg := kraken.DefaultConfig(cfg.KrakenPair)
	kcfg.URL = cfg.KrakenWSURL
	connector := kraken.NewConnector(kcfg, metrics)
	slog.Info("reference feed", "url", kcfg.URL, "pair", connector.Pair())

	engine := strategy.New(cfg.Markets, cfg.Risk, connector, qc, qc,
		strategy.WithMetrics(metrics),
		strategy.WithOrderExpiration(cfg.OrderExpirationSeconds),
	)
	if err := engine.Start(ctx); err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case <-engine.Done():
		slog.Warn("engine exited on its own")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := engine.Stop(stopCtx); err != nil {
		slog.Error("shutdown incomplete", "err", err)
	}

	report(notify.NewConsole(*table), engine, metrics)

	slog.Info("latencybot stopped cleanly")
}

// report imprime el resumen final por el notifier.
func report(n ports.Notifier, engine *strategy.Engine, metrics *obs.Metrics) {
	n.PrintSummary(engine.Snapshot())
	n.PrintStats(metrics.Snapshot())
}

// checkBalance loguea el saldo USDC.e de la wallet. Nunca es fatal.
func checkBalance(ctx context.Context, rpcURL, address string) {
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	w, err := polymarket.NewWallet(ctx, rpcURL)
	if err != nil {
		slog.Warn("balance preflight skipped", "err", err)
		return
	}
	defer w.Close()

	bal, err := w.USDCBalance(ctx, address)
	if err != nil {
		slog.Warn("balance preflight failed", "err", err)
		return
	}
	if bal <= 0 {
		slog.Warn("wallet has no USDC.e, orders will be rejected", "wallet", address)
		return
	}
	slog.Info("wallet balance", "usdc", fmt.Sprintf("$%.2f", bal), "wallet", address)
}
