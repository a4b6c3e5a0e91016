package core

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMarket() domain.Market {
	return domain.Market{
		ID:         "mkt-1",
		YesTokenID: "yes-tok",
		NoTokenID:  "no-tok",
	}
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSelectOpportunityPrefersLowerPairCostAndYesOnTie(t *testing.T) {
	t.Parallel()
	a := NewAccumulator(&fakeVenue{}, store.NewMemoryStore(), domain.DefaultTradingParams(), testLogger())

	pos := domain.NewPosition()

	// both sides identical: tie must favor YES.
	got := a.selectOpportunity(pos, d("0.40"), d("0.40"))
	if got == nil || got.side != domain.YES {
		t.Fatalf("expected YES on tie, got %+v", got)
	}

	// NO strictly cheaper wins.
	got = a.selectOpportunity(pos, d("0.45"), d("0.30"))
	if got == nil || got.side != domain.NO {
		t.Fatalf("expected NO to win on lower pair cost, got %+v", got)
	}

	// neither beats the target pair cost (0.98 default).
	got = a.selectOpportunity(pos, d("0.99"), d("0.99"))
	if got != nil {
		t.Fatalf("expected no opportunity above target pair cost, got %+v", got)
	}
}

func TestCheckConstraintsRejectsOnDeltaBreach(t *testing.T) {
	t.Parallel()
	params := domain.DefaultTradingParams()
	a := NewAccumulator(&fakeVenue{}, store.NewMemoryStore(), params, testLogger())

	pos := domain.NewPosition()
	pos.QtyYes = params.MaxUnhedgedDelta // already at the ceiling
	pos.Recompute()

	book := domain.OrderBook{
		NoAsks: []domain.OrderBookEntry{{Price: d("0.5"), Size: d("1000")}},
	}

	if a.checkConstraints(domain.YES, pos, book) {
		t.Fatal("expected constraint failure: buying more YES would breach max_unhedged_delta")
	}
}

func TestCheckConstraintsRejectsOnThinLiquidity(t *testing.T) {
	t.Parallel()
	params := domain.DefaultTradingParams()
	a := NewAccumulator(&fakeVenue{}, store.NewMemoryStore(), params, testLogger())

	pos := domain.NewPosition()
	book := domain.OrderBook{
		NoAsks: []domain.OrderBookEntry{{Price: d("0.5"), Size: d("1")}}, // far below trade_size * multiplier
	}

	if a.checkConstraints(domain.YES, pos, book) {
		t.Fatal("expected constraint failure: opposite-side depth is too thin")
	}
}

func TestScanAndExecuteTradesWhenOpportunityAndConstraintsPass(t *testing.T) {
	t.Parallel()
	params := domain.DefaultTradingParams()
	fv := &fakeVenue{
		book: domain.OrderBook{
			YesAsks: []domain.OrderBookEntry{{Price: d("0.40"), Size: d("100")}},
			NoAsks:  []domain.OrderBookEntry{{Price: d("0.40"), Size: d("100")}},
		},
	}
	st := store.NewMemoryStore()
	a := NewAccumulator(fv, st, params, testLogger())

	if err := a.scanAndExecute(context.Background(), testMarket()); err != nil {
		t.Fatalf("scanAndExecute: %v", err)
	}

	if len(fv.placed) != 1 {
		t.Fatalf("expected one order placed, got %d", len(fv.placed))
	}
	if fv.placed[0].tokenID != "yes-tok" {
		t.Fatalf("expected YES token traded on a tie, got %s", fv.placed[0].tokenID)
	}

	pos, err := st.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !pos.QtyYes.Equal(params.TradeSize) {
		t.Fatalf("expected position to reflect the fill, got %+v", pos)
	}
}

func TestScanAndExecuteSkipsWithoutFallthroughOnConstraintFailure(t *testing.T) {
	t.Parallel()
	params := domain.DefaultTradingParams()
	fv := &fakeVenue{
		book: domain.OrderBook{
			YesAsks: []domain.OrderBookEntry{{Price: d("0.40"), Size: d("100")}},
			// NO side too thin to satisfy the liquidity constraint for a YES buy.
			NoAsks: []domain.OrderBookEntry{{Price: d("0.40"), Size: d("1")}},
		},
	}
	st := store.NewMemoryStore()
	a := NewAccumulator(fv, st, params, testLogger())

	if err := a.scanAndExecute(context.Background(), testMarket()); err != nil {
		t.Fatalf("scanAndExecute: %v", err)
	}

	if len(fv.placed) != 0 {
		t.Fatalf("expected no trade: constraint failure must skip the tick, not fall through, got %+v", fv.placed)
	}
}
