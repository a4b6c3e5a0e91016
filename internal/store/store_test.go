package store

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

func newTestStore() Store {
	return NewMemoryStore()
}

func TestGetPositionEmptyIsZeroValue(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	pos, err := s.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !pos.QtyYes.IsZero() || !pos.QtyNo.IsZero() {
		t.Errorf("expected zero position, got %+v", pos)
	}
}

func TestUpdatePositionAtomicAppliesDelta(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	pos, err := s.UpdatePositionAtomic(ctx, domain.NO, decimal.NewFromInt(10), decimal.NewFromFloat(4.0))
	if err != nil {
		t.Fatalf("UpdatePositionAtomic: %v", err)
	}
	if !pos.QtyNo.Equal(decimal.NewFromInt(10)) {
		t.Errorf("qty_no = %s, want 10", pos.QtyNo)
	}
	if !pos.AvgNo.Equal(decimal.NewFromFloat(0.4)) {
		t.Errorf("avg_no = %s, want 0.4", pos.AvgNo)
	}

	// second update must accumulate, not overwrite
	pos, err = s.UpdatePositionAtomic(ctx, domain.YES, decimal.NewFromInt(10), decimal.NewFromFloat(5.5))
	if err != nil {
		t.Fatalf("UpdatePositionAtomic: %v", err)
	}
	if !pos.PairCost.Equal(decimal.NewFromFloat(0.95)) {
		t.Errorf("pair_cost = %s, want 0.95", pos.PairCost)
	}
}

// TestUpdatePositionAtomicLinearizability exercises §8's linearizability
// property: concurrent application of N deltas across K goroutines must
// yield the same final position as sequential application of the same
// multiset, since every commit is individually atomic and order-independent
// for sums.
func TestUpdatePositionAtomicLinearizability(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				side := domain.YES
				if i%2 == 0 {
					side = domain.NO
				}
				qty := decimal.NewFromInt(1)
				cost := decimal.NewFromFloat(0.5)
				if _, err := s.UpdatePositionAtomic(ctx, side, qty, cost); err != nil {
					t.Errorf("UpdatePositionAtomic: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	pos, err := s.GetPosition(ctx)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}

	total := workers * perWorker
	halfYes := decimal.NewFromInt(int64(total / 2))
	if !pos.QtyYes.Equal(halfYes) || !pos.QtyNo.Equal(halfYes) {
		t.Fatalf("qty_yes=%s qty_no=%s, want %s each", pos.QtyYes, pos.QtyNo, halfYes)
	}
	wantCost := halfYes.Mul(decimal.NewFromFloat(0.5))
	if !pos.CostYes.Equal(wantCost) || !pos.CostNo.Equal(wantCost) {
		t.Fatalf("cost_yes=%s cost_no=%s, want %s each", pos.CostYes, pos.CostNo, wantCost)
	}
}

func TestAddTradeTrimsToMaxTrades(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	for i := 0; i < MaxTrades+10; i++ {
		tr := domain.NewTrade("id", domain.YES, decimal.NewFromFloat(0.5), decimal.NewFromInt(1), "", "mkt", domain.NewPosition())
		if err := s.AddTrade(ctx, tr); err != nil {
			t.Fatalf("AddTrade: %v", err)
		}
	}

	count, err := s.GetTradeCount(ctx)
	if err != nil {
		t.Fatalf("GetTradeCount: %v", err)
	}
	if count != MaxTrades {
		t.Errorf("trade count = %d, want %d", count, MaxTrades)
	}
}

func TestGetRecentTradesNewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		tr := domain.NewTrade(id, domain.YES, decimal.NewFromFloat(0.5), decimal.NewFromInt(1), "", "mkt", domain.NewPosition())
		if err := s.AddTrade(ctx, tr); err != nil {
			t.Fatalf("AddTrade: %v", err)
		}
	}

	recent, err := s.GetRecentTrades(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecentTrades: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("got %+v, want newest-first [c b]", recent)
	}
}

func TestHaltFlagRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	halted, err := s.IsHalted(ctx)
	if err != nil || halted {
		t.Fatalf("expected not halted initially, got %v err=%v", halted, err)
	}
	if err := s.SetHaltFlag(ctx, true); err != nil {
		t.Fatalf("SetHaltFlag: %v", err)
	}
	halted, err = s.IsHalted(ctx)
	if err != nil || !halted {
		t.Fatalf("expected halted, got %v err=%v", halted, err)
	}
}

func TestMarketRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	_, ok, err := s.GetMarket(ctx)
	if err != nil || ok {
		t.Fatalf("expected no market initially, ok=%v err=%v", ok, err)
	}

	m := domain.Market{ID: "mkt1", Question: "will it rain"}
	if err := s.SaveMarket(ctx, m); err != nil {
		t.Fatalf("SaveMarket: %v", err)
	}
	got, ok, err := s.GetMarket(ctx)
	if err != nil || !ok || got.ID != "mkt1" {
		t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestMetricsMerge(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	if err := s.UpdateMetrics(ctx, map[string]string{"risk_level": "LOW"}); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}
	if err := s.UpdateMetrics(ctx, map[string]string{"flow_toxicity": "0.1"}); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}
	m, err := s.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if m["risk_level"] != "LOW" || m["flow_toxicity"] != "0.1" {
		t.Fatalf("got %+v", m)
	}
}

func TestClearAllResetsEverything(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	_, _ = s.UpdatePositionAtomic(ctx, domain.YES, decimal.NewFromInt(5), decimal.NewFromFloat(2.5))
	_ = s.AddTrade(ctx, domain.NewTrade("x", domain.YES, decimal.NewFromFloat(0.5), decimal.NewFromInt(1), "", "mkt", domain.NewPosition()))
	_ = s.SetHaltFlag(ctx, true)
	_ = s.UpdateMetrics(ctx, map[string]string{"k": "v"})

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	pos, _ := s.GetPosition(ctx)
	if !pos.QtyYes.IsZero() {
		t.Errorf("position not cleared: %+v", pos)
	}
	count, _ := s.GetTradeCount(ctx)
	if count != 0 {
		t.Errorf("trades not cleared: %d", count)
	}
	halted, _ := s.IsHalted(ctx)
	if halted {
		t.Errorf("halt flag not cleared")
	}
	metrics, _ := s.GetMetrics(ctx)
	if len(metrics) != 0 {
		t.Errorf("metrics not cleared: %+v", metrics)
	}
}
