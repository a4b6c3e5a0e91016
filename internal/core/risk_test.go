package core

import (
	"context"
	"testing"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
)

func TestClassifyRiskLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name                                     string
		deltaOK, liquidityOK, stopLoss, settle   bool
		want                                     domain.RiskLevel
	}{
		{"all clear", true, true, false, false, domain.RiskLow},
		{"settlement only", true, true, false, true, domain.RiskMedium},
		{"delta breach", false, true, false, false, domain.RiskHigh},
		{"liquidity breach", true, false, false, false, domain.RiskHigh},
		{"stop loss wins over everything", false, false, true, true, domain.RiskCritical},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classifyRiskLevel(c.deltaOK, c.liquidityOK, c.stopLoss, c.settle)
			if got != c.want {
				t.Fatalf("classifyRiskLevel(%v,%v,%v,%v) = %s, want %s", c.deltaOK, c.liquidityOK, c.stopLoss, c.settle, got, c.want)
			}
		})
	}
}

func TestCheckBailoutStopLossTriggersOnLargeLoss(t *testing.T) {
	t.Parallel()
	params := domain.DefaultTradingParams() // bailout_stop_loss_percent = 2.0
	r := NewRiskEngine(&fakeVenue{}, store.NewMemoryStore(), params, testLogger())

	pos := domain.NewPosition()
	pos.QtyYes, pos.CostYes = d("100"), d("50") // avg 0.50
	pos.Recompute()

	// mid price has collapsed to 0.10: massive unrealized loss.
	book := domain.OrderBook{
		YesBids: []domain.OrderBookEntry{{Price: d("0.09"), Size: d("1000")}},
		YesAsks: []domain.OrderBookEntry{{Price: d("0.11"), Size: d("1000")}},
		NoBids:  []domain.OrderBookEntry{{Price: d("0.85"), Size: d("1000")}},
		NoAsks:  []domain.OrderBookEntry{{Price: d("0.87"), Size: d("1000")}},
	}

	triggered, pnl := r.checkBailoutStopLoss(pos, book)
	if !triggered {
		t.Fatalf("expected stop-loss to trigger, pnl=%s", pnl)
	}
	if !pnl.IsNegative() {
		t.Fatalf("expected negative unrealized pnl, got %s", pnl)
	}
}

func TestCheckBailoutStopLossSkipsWithoutBothMids(t *testing.T) {
	t.Parallel()
	r := NewRiskEngine(&fakeVenue{}, store.NewMemoryStore(), domain.DefaultTradingParams(), testLogger())
	pos := domain.NewPosition()
	pos.QtyYes, pos.CostYes = d("100"), d("50")
	pos.Recompute()

	// NO side has no bids at all.
	book := domain.OrderBook{
		YesBids: []domain.OrderBookEntry{{Price: d("0.09"), Size: d("1000")}},
		YesAsks: []domain.OrderBookEntry{{Price: d("0.11"), Size: d("1000")}},
	}

	triggered, _ := r.checkBailoutStopLoss(pos, book)
	if triggered {
		t.Fatal("expected stop-loss check to skip when a side's mid price is unavailable")
	}
}

func TestEmergencyLiquidationSellsBothLegsAndHalts(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{
		book: domain.OrderBook{
			YesBids: []domain.OrderBookEntry{{Price: d("0.40"), Size: d("1000")}},
			NoBids:  []domain.OrderBookEntry{{Price: d("0.55"), Size: d("1000")}},
		},
	}
	st := store.NewMemoryStore()
	if _, err := st.UpdatePositionAtomic(context.Background(), domain.YES, d("20"), d("10")); err != nil {
		t.Fatalf("seed yes: %v", err)
	}
	if _, err := st.UpdatePositionAtomic(context.Background(), domain.NO, d("5"), d("3")); err != nil {
		t.Fatalf("seed no: %v", err)
	}

	r := NewRiskEngine(fv, st, domain.DefaultTradingParams(), testLogger())
	r.emergencyLiquidation(context.Background(), testMarket())

	pos, err := st.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !pos.QtyYes.IsZero() || !pos.QtyNo.IsZero() {
		t.Fatalf("expected both legs fully sold down, got %+v", pos)
	}

	halted, err := st.IsHalted(context.Background())
	if err != nil {
		t.Fatalf("IsHalted: %v", err)
	}
	if !halted {
		t.Fatal("expected halt flag set after emergency liquidation")
	}

	for _, p := range fv.placed {
		if p.action != domain.ActionSell {
			t.Fatalf("expected only sells during liquidation, got %+v", p)
		}
		if p.postOnly {
			t.Fatalf("expected liquidation sells to be taker (non-post-only), got %+v", p)
		}
	}
}
