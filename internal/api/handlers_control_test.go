package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/config"
	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/engine"
)

type fakeProvider struct {
	status      engine.Status
	metrics     map[string]string
	trades      []domain.Trade
	book        domain.OrderBook
	halted      bool
	panicked    bool
	haltCalled  bool
	resumeCalled bool
	events      chan engine.Event
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		status:  engine.Status{Running: true, RiskLevel: domain.RiskLow},
		metrics: map[string]string{"risk_level": "LOW"},
		events:  make(chan engine.Event, 4),
	}
}

func (f *fakeProvider) Status(ctx context.Context) (engine.Status, error)          { return f.status, nil }
func (f *fakeProvider) Metrics(ctx context.Context) (map[string]string, error)     { return f.metrics, nil }
func (f *fakeProvider) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}
func (f *fakeProvider) OrderBookSnapshot(ctx context.Context) (domain.OrderBook, error) {
	return f.book, nil
}
func (f *fakeProvider) PanicClose(ctx context.Context) { f.panicked = true }
func (f *fakeProvider) Halt(ctx context.Context) error {
	f.haltCalled = true
	f.halted = true
	return nil
}
func (f *fakeProvider) Resume(ctx context.Context) error {
	f.resumeCalled = true
	f.halted = false
	return nil
}
func (f *fakeProvider) Events() <-chan engine.Event { return f.events }

func testHandlers(provider EngineProvider) *Handlers {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandlers(provider, config.DashboardConfig{}, ConfigSummary{}, NewHub(logger), logger)
}

func TestHandleStatusReturnsProviderStatus(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	h := testHandlers(p)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !got.Running || got.RiskLevel != domain.RiskLow {
		t.Fatalf("expected provider status (running, LOW), got %+v", got)
	}
}

func TestHandleTradesRespectsLimit(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	p.trades = []domain.Trade{
		domain.NewTrade("1", domain.YES, decimal.NewFromFloat(0.4), decimal.NewFromInt(1), "o1", "m1", domain.NewPosition()),
		domain.NewTrade("2", domain.NO, decimal.NewFromFloat(0.5), decimal.NewFromInt(1), "o2", "m1", domain.NewPosition()),
	}
	h := testHandlers(p)

	req := httptest.NewRequest(http.MethodGet, "/api/trades?limit=1", nil)
	rec := httptest.NewRecorder()
	h.HandleTrades(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode trades: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 trade with limit=1, got %d", len(got))
	}
}

func TestHandlePanicCloseRejectsGet(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	h := testHandlers(p)

	req := httptest.NewRequest(http.MethodGet, "/api/panic-close", nil)
	rec := httptest.NewRecorder()
	h.HandlePanicClose(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if p.panicked {
		t.Fatal("expected panic close not to be invoked on GET")
	}
}

func TestHandlePanicCloseInvokesProvider(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	h := testHandlers(p)

	req := httptest.NewRequest(http.MethodPost, "/api/panic-close", nil)
	rec := httptest.NewRecorder()
	h.HandlePanicClose(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !p.panicked {
		t.Fatal("expected panic close to be invoked")
	}
}

func TestHandleHaltAndResume(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	h := testHandlers(p)

	req := httptest.NewRequest(http.MethodPost, "/api/halt", nil)
	rec := httptest.NewRecorder()
	h.HandleHalt(rec, req)
	if rec.Code != http.StatusOK || !p.haltCalled {
		t.Fatalf("expected halt invoked, code=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/resume", nil)
	rec = httptest.NewRecorder()
	h.HandleResume(rec, req)
	if rec.Code != http.StatusOK || !p.resumeCalled {
		t.Fatalf("expected resume invoked, code=%d", rec.Code)
	}
}

func TestBuildSnapshotAggregatesProviderState(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	p.trades = []domain.Trade{domain.NewTrade("1", domain.YES, decimal.NewFromFloat(0.4), decimal.NewFromInt(1), "o1", "m1", domain.NewPosition())}

	cfgSummary := NewConfigSummary(config.Config{Trading: config.TradingConfig{TradeSize: "50"}, DryRun: true})
	snap := BuildSnapshot(context.Background(), p, cfgSummary)
	if snap.Status.RiskLevel != domain.RiskLow {
		t.Fatalf("expected risk level LOW in snapshot, got %s", snap.Status.RiskLevel)
	}
	if len(snap.RecentTrades) != 1 {
		t.Fatalf("expected 1 trade in snapshot, got %d", len(snap.RecentTrades))
	}
	if snap.Config != cfgSummary {
		t.Fatalf("expected config summary to be carried through, got %+v", snap.Config)
	}
}
