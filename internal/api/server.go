package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gabagool-mm/internal/config"
)

// Server runs the HTTP/WebSocket control surface for the trading engine.
type Server struct {
	cfg      config.DashboardConfig
	provider EngineProvider
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new API server. cfg is the full process configuration,
// not just the dashboard section: the dashboard-safe ConfigSummary handed to
// clients on WebSocket connect is derived from cfg.Trading/cfg.DryRun.
func NewServer(cfg config.Config, provider EngineProvider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, cfg.Dashboard, NewConfigSummary(cfg), hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/status", handlers.HandleStatus)
	mux.HandleFunc("/api/metrics", handlers.HandleMetrics)
	mux.HandleFunc("/api/trades", handlers.HandleTrades)
	mux.HandleFunc("/api/orderbook", handlers.HandleOrderBook)
	mux.HandleFunc("/api/panic-close", handlers.HandlePanicClose)
	mux.HandleFunc("/api/halt", handlers.HandleHalt)
	mux.HandleFunc("/api/resume", handlers.HandleResume)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Dashboard.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg.Dashboard,
		provider: provider,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server and hub. Blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeEvents()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents forwards orchestrator events to every connected client.
func (s *Server) consumeEvents() {
	for evt := range s.provider.Events() {
		s.hub.BroadcastEvent(dashboardEventFromEngine(evt))
	}
}
