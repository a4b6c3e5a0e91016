package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
	"gabagool-mm/internal/venue"
)

// opportunity is a candidate paired-position-improving trade: buy Side at
// Price, with the expected resulting pair cost if executed.
type opportunity struct {
	side             domain.Side
	price            decimal.Decimal
	expectedPairCost decimal.Decimal
}

// Accumulator scans for paired-position-improving trades every tick and
// executes the best one if it passes the delta and liquidity constraints;
// when it fails them, the other candidate is not tried.
type Accumulator struct {
	venue  venue.Venue
	store  store.Store
	params domain.TradingParams
	logger *slog.Logger
}

// NewAccumulator builds an Accumulator bound to a venue and store.
func NewAccumulator(v venue.Venue, st store.Store, params domain.TradingParams, logger *slog.Logger) *Accumulator {
	return &Accumulator{
		venue:  v,
		store:  st,
		params: params,
		logger: logger.With("component", "accumulator"),
	}
}

// Run executes the scan-and-trade loop for the given market until ctx is
// cancelled or the market reaches its settlement buffer.
func (a *Accumulator) Run(ctx context.Context, market domain.Market) error {
	ticker := time.NewTicker(time.Duration(a.params.ScanIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	a.logger.Info("accumulator started", "market", market.ID, "question", market.Question)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		halted, err := a.store.IsHalted(ctx)
		if err != nil {
			a.logger.Error("check halt flag", "error", err)
			continue
		}
		if halted {
			continue
		}

		if market.WithinSettlementBuffer(time.Now(), a.params.SettlementBufferSeconds) {
			a.logger.Warn("settlement buffer reached, stopping accumulation", "market", market.ID)
			return nil
		}

		if err := a.scanAndExecute(ctx, market); err != nil {
			a.logger.Error("scan and execute", "error", err)
		}
	}
}

func (a *Accumulator) scanAndExecute(ctx context.Context, market domain.Market) error {
	pos, err := a.store.GetPosition(ctx)
	if err != nil {
		return err
	}

	bookCtx, cancel := withVenueTimeout(ctx)
	book, err := a.venue.GetMarketOrderBook(bookCtx, market)
	cancel()
	if err != nil {
		return err
	}

	askYes, okYes := book.BestAsk(domain.YES)
	askNo, okNo := book.BestAsk(domain.NO)
	if !okYes || !okNo {
		a.logger.Debug("incomplete order book, skipping scan")
		return nil
	}

	cand := a.selectOpportunity(pos, askYes.Price, askNo.Price)
	if cand == nil {
		return nil
	}

	if !a.checkConstraints(cand.side, pos, book) {
		a.logger.Debug("constraints failed, skipping tick", "side", cand.side)
		return nil
	}

	trade, err := executeTrade(ctx, a.venue, a.store, market, cand.side, cand.price, a.params.TradeSize, true)
	if err != nil {
		a.logger.Warn("execute trade failed", "side", cand.side, "error", err)
		return nil
	}

	a.logger.Info("trade executed",
		"side", trade.Side, "price", trade.Price, "qty", trade.Qty,
		"pair_cost", trade.ResultingPairCost, "delta", trade.ResultingDelta,
	)
	return nil
}

// selectOpportunity forms both candidate opportunities and returns the one
// with the lower expected pair cost, nil if neither exists. Ties favor YES.
func (a *Accumulator) selectOpportunity(pos domain.Position, askYes, askNo decimal.Decimal) *opportunity {
	target := a.params.TargetPairCost()

	var yesOpp, noOpp *opportunity
	if expected := askYes.Add(pos.AvgNo); expected.LessThan(target) {
		yesOpp = &opportunity{side: domain.YES, price: askYes, expectedPairCost: expected}
	}
	if expected := askNo.Add(pos.AvgYes); expected.LessThan(target) {
		noOpp = &opportunity{side: domain.NO, price: askNo, expectedPairCost: expected}
	}

	switch {
	case yesOpp != nil && noOpp != nil:
		if noOpp.expectedPairCost.LessThan(yesOpp.expectedPairCost) {
			return noOpp
		}
		return yesOpp // tie or YES strictly lower: YES wins
	case yesOpp != nil:
		return yesOpp
	case noOpp != nil:
		return noOpp
	default:
		return nil
	}
}

// checkConstraints evaluates the delta and liquidity constraints for
// buying side at trade_size. Does not fall through to the other side on
// failure — the caller simply skips the tick.
func (a *Accumulator) checkConstraints(side domain.Side, pos domain.Position, book domain.OrderBook) bool {
	signedQty := a.params.TradeSize
	if side == domain.NO {
		signedQty = signedQty.Neg()
	}
	newDelta := pos.Delta.Add(signedQty)
	if newDelta.Abs().GreaterThan(a.params.MaxUnhedgedDelta) {
		return false
	}

	opposite := side.Opposite()
	required := a.params.TradeSize.Mul(a.params.MinLiquidityMultiplier)
	available := book.GetDepth(opposite, domain.Ask, 5)
	return available.GreaterThanOrEqual(required)
}
