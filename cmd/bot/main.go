// gabagool-mm trades one Polymarket binary market at a time: it pairs YES
// and NO buys below a dollar, holds the paired position to settlement,
// and leans on a risk engine to unwind early if the position or the book
// turns against it.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires venue + store, starts the orchestrator
//	engine/orchestrator.go     — supervises the accumulator, equalizer, and risk engine for the active market
//	engine/selector.go         — polls the Gamma API for the next market to trade
//	core/accumulator.go        — buys YES and NO legs toward a profitable pair
//	core/equalizer.go          — rebalances a lagging side back toward parity
//	core/risk.go               — monitors delta, liquidity depth, and drawdown; can force an emergency exit
//	exchange/client.go         — REST client for the Polymarket CLOB API
//	exchange/auth.go           — L1 (EIP-712) and L2 (HMAC) authentication
//	exchange/ws.go             — market + user WebSocket feeds with auto-reconnect
//	exchange/adapter.go        — implements venue.Venue over the REST client + WS feeds
//	store/{redis,memory}_store.go — the durable State Store (Redis, or in-memory fallback)
//	api/server.go              — HTTP + WebSocket control surface for status, trades, and panic-close
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gabagool-mm/internal/api"
	"gabagool-mm/internal/config"
	"gabagool-mm/internal/engine"
	"gabagool-mm/internal/exchange"
	"gabagool-mm/internal/store"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("GABAGOOL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(*cfg)

	st := newStore(*cfg, logger)

	auth, err := exchange.NewAuth(*cfg)
	if err != nil {
		logger.Error("failed to build auth", "error", err)
		os.Exit(1)
	}
	client := exchange.NewClient(*cfg, auth, logger)
	if !auth.HasL2Credentials() {
		if _, err := client.DeriveAPIKey(context.Background()); err != nil {
			logger.Error("failed to derive L2 API credentials", "error", err)
			os.Exit(1)
		}
	}
	marketFeed := exchange.NewMarketFeed(cfg.API.WSMarketURL, logger)
	userFeed := exchange.NewUserFeed(cfg.API.WSUserURL, auth, logger)

	params, err := cfg.Trading.ToParams()
	if err != nil {
		logger.Error("invalid trading params", "error", err)
		os.Exit(1)
	}

	adapter := exchange.NewAdapter(client, marketFeed, userFeed, false, params.SettlementBufferSeconds, logger)

	selectorCfg := selectorConfigFromYAML(cfg.Selector, cfg.API.GammaBaseURL)
	selector := engine.NewMarketSelector(selectorCfg)

	orch := engine.New(adapter, st, selector, params, logger)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(*cfg, orch, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("gabagool market maker started",
		"max_unhedged_delta", params.MaxUnhedgedDelta.String(),
		"trade_size", params.TradeSize.String(),
		"settlement_buffer_seconds", params.SettlementBufferSeconds,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	orch.Stop()
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newStore builds a RedisStore when an address is configured, and falls
// back to the in-process MemoryStore otherwise — the "single-writer
// variant" for running without Redis.
func newStore(cfg config.Config, logger *slog.Logger) store.Store {
	if cfg.Store.Addr == "" {
		logger.Warn("store.addr not set, using in-memory state store (no persistence across restarts)")
		return store.NewMemoryStore()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Addr,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
	})
	return store.NewRedisStore(rdb)
}

func selectorConfigFromYAML(y config.SelectorYAML, gammaBaseURL string) engine.SelectorConfig {
	cfg := engine.DefaultSelectorConfig(gammaBaseURL)
	if len(y.Symbols) > 0 {
		cfg.Symbols = y.Symbols
	}
	if y.PreferredWindowMinSec > 0 {
		cfg.PreferredWindowMin = time.Duration(y.PreferredWindowMinSec) * time.Second
	}
	if y.PreferredWindowMaxSec > 0 {
		cfg.PreferredWindowMax = time.Duration(y.PreferredWindowMaxSec) * time.Second
	}
	return cfg
}
