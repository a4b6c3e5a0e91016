package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
	"gabagool-mm/internal/venue"
)

type fakeVenue struct {
	mu     sync.Mutex
	book   domain.OrderBook
	placed int
}

var _ venue.Venue = (*fakeVenue)(nil)

func (f *fakeVenue) GetMarketOrderBook(ctx context.Context, market domain.Market) (domain.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.book, nil
}

func (f *fakeVenue) GetOrderBook(ctx context.Context, tokenID string) ([]domain.OrderBookEntry, []domain.OrderBookEntry, error) {
	return nil, nil, nil
}

func (f *fakeVenue) PlaceLimitOrder(ctx context.Context, tokenID string, action domain.OrderAction, price, size decimal.Decimal, postOnly bool) (venue.OrderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed++
	return venue.OrderID("order"), nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, id venue.OrderID) (bool, error) {
	return true, nil
}

func (f *fakeVenue) GetOpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	return nil, nil
}

// fakeFeedVenue additionally implements feedRunner, the way exchange.Adapter
// does, so superviseLoop should pick up a fourth supervised task for it.
type fakeFeedVenue struct {
	fakeVenue
	runCalls int
	runMu    sync.Mutex
}

var _ feedRunner = (*fakeFeedVenue)(nil)

func (f *fakeFeedVenue) Run(ctx context.Context, market domain.Market) error {
	f.runMu.Lock()
	f.runCalls++
	f.runMu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func testMarket() domain.Market {
	return domain.Market{
		ID:          "m1",
		ConditionID: "cond1",
		YesTokenID:  "yes-tok",
		NoTokenID:   "no-tok",
		Question:    "will it happen",
		Expiration:  time.Now().Add(time.Hour),
		MinTickSize: decimal.NewFromFloat(0.01),
		MinSize:     decimal.NewFromInt(5),
		Active:      true,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestOrchestrator builds an Orchestrator with its market already set,
// bypassing Start()'s dependency on a live Gamma selector.
func newTestOrchestrator(t *testing.T, v venue.Venue, st store.Store) *Orchestrator {
	t.Helper()
	o := New(v, st, NewMarketSelector(DefaultSelectorConfig("http://unused")), domain.DefaultTradingParams(), testLogger())
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.market = testMarket()
	o.hasMarket = true
	o.running = true
	if err := st.SaveMarket(o.ctx, o.market); err != nil {
		t.Fatalf("save market: %v", err)
	}
	return o
}

func TestStatusReportsHealthAndHaltFlag(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	o := newTestOrchestrator(t, &fakeVenue{}, st)
	o.setHealth(taskAccumulator, true)
	o.setHealth(taskEqualizer, false)

	status, err := o.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Halted {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !status.TaskHealth["accumulator"] || status.TaskHealth["equalizer"] {
		t.Fatalf("unexpected task health: %+v", status.TaskHealth)
	}
	if status.RiskLevel != domain.RiskLow {
		t.Fatalf("expected default risk level LOW, got %s", status.RiskLevel)
	}
}

func TestHaltAndResumeToggleStoreFlag(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	o := newTestOrchestrator(t, &fakeVenue{}, st)

	if err := o.Halt(context.Background()); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	halted, err := st.IsHalted(context.Background())
	if err != nil || !halted {
		t.Fatalf("expected halted=true, err=%v", err)
	}

	if err := o.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	halted, err = st.IsHalted(context.Background())
	if err != nil || halted {
		t.Fatalf("expected halted=false, err=%v", err)
	}
}

func TestPanicCloseLiquidatesAndHalts(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	if _, err := st.UpdatePositionAtomic(context.Background(), domain.YES, decimal.NewFromInt(10), decimal.NewFromInt(5)); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	fv := &fakeVenue{book: domain.OrderBook{
		YesBids: []domain.OrderBookEntry{{Price: decimal.NewFromFloat(0.4), Size: decimal.NewFromInt(100)}},
	}}
	o := newTestOrchestrator(t, fv, st)

	o.PanicClose(context.Background())

	pos, err := st.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !pos.QtyYes.IsZero() {
		t.Fatalf("expected position liquidated, got %+v", pos)
	}
	halted, err := st.IsHalted(context.Background())
	if err != nil || !halted {
		t.Fatalf("expected halted after panic close, err=%v", err)
	}
}

func TestSuperviseLoopLaunchesVenueFeedTaskWhenSupported(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	fv := &fakeFeedVenue{}
	o := newTestOrchestrator(t, fv, st)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.superviseLoop()
	}()

	time.Sleep(100 * time.Millisecond)
	o.cancel()
	<-done

	fv.runMu.Lock()
	calls := fv.runCalls
	fv.runMu.Unlock()
	if calls == 0 {
		t.Fatal("expected Run to be launched as a supervised task")
	}
	status, err := o.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, ok := status.TaskHealth[string(taskVenueFeed)]; !ok {
		t.Fatalf("expected task health to track %q, got %+v", taskVenueFeed, status.TaskHealth)
	}
}

func TestWatchFillsForwardsNewTradesToRiskEngine(t *testing.T) {
	t.Parallel()
	st := store.NewMemoryStore()
	o := newTestOrchestrator(t, &fakeVenue{}, st)

	trade := domain.NewTrade("t1", domain.YES, decimal.NewFromFloat(0.4), decimal.NewFromInt(10), "order1", o.market.ID, domain.NewPosition())
	if err := st.AddTrade(context.Background(), trade); err != nil {
		t.Fatalf("AddTrade: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.watchFills()
	}()
	time.Sleep(fillWatchInterval + 200*time.Millisecond)
	o.cancel()
	<-done

	select {
	case evt := <-o.Events():
		if evt.Type != "fill" || evt.Trade == nil || evt.Trade.ID != "t1" {
			t.Fatalf("expected fill event for trade t1, got %+v", evt)
		}
	default:
		t.Fatal("expected watchFills to forward the new trade")
	}
}
