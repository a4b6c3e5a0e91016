package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"gabagool-mm/internal/config"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	provider   EngineProvider
	cfg        config.DashboardConfig
	cfgSummary ConfigSummary
	hub        *Hub
	logger     *slog.Logger
}

// NewHandlers creates a new handlers instance. cfgSummary is computed once at
// startup and handed to every connecting dashboard client unchanged, since
// trading parameters don't change over the process lifetime.
func NewHandlers(provider EngineProvider, cfg config.DashboardConfig, cfgSummary ConfigSummary, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		provider:   provider,
		cfg:        cfg,
		cfgSummary: cfgSummary,
		hub:        hub,
		logger:     logger.With("component", "api-handlers"),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

// HandleStatus reports the orchestrator's running/halted/risk-level state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.provider.Status(r.Context())
	if err != nil {
		h.logger.Error("status", "error", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, status)
}

// HandleMetrics returns the most recently persisted risk metrics.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.provider.Metrics(r.Context())
	if err != nil {
		h.logger.Error("metrics", "error", err)
		http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, metrics)
}

const defaultTradesLimit = 100

// HandleTrades returns the most recent trades, optionally bounded by a
// ?limit= query parameter.
func (h *Handlers) HandleTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	trades, err := h.provider.RecentTrades(r.Context(), limit)
	if err != nil {
		h.logger.Error("trades", "error", err)
		http.Error(w, "trades unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, trades)
}

// HandleOrderBook returns a fresh order book snapshot for the active market.
func (h *Handlers) HandleOrderBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.provider.OrderBookSnapshot(r.Context())
	if err != nil {
		h.logger.Error("order book", "error", err)
		http.Error(w, "order book unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, book)
}

// HandlePanicClose triggers immediate liquidation and a halt.
func (h *Handlers) HandlePanicClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.provider.PanicClose(r.Context())
	h.writeJSON(w, map[string]string{"status": "panic close initiated"})
}

// HandleHalt sets the halt flag without liquidating.
func (h *Handlers) HandleHalt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.provider.Halt(r.Context()); err != nil {
		h.logger.Error("halt", "error", err)
		http.Error(w, "halt failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]string{"status": "halted"})
}

// HandleResume clears the halt flag.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.provider.Resume(r.Context()); err != nil {
		h.logger.Error("resume", "error", err)
		http.Error(w, "resume failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]string{"status": "resumed"})
}

// HandleWebSocket upgrades the connection and creates a new WebSocket client.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn)

	snap := BuildSnapshot(r.Context(), h.provider, h.cfgSummary)
	data, err := json.Marshal(NewSnapshotEvent(snap))
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to client")
	}
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		// Non-browser clients often omit Origin; keep this path functional.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
