package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
	"gabagool-mm/internal/venue"
)

// riskInterval is the fixed check cadence per §4.5.
const riskInterval = 5 * time.Second

// riskLiquidityLevels is the order-book depth the liquidity check sums over.
const riskLiquidityLevels = 10

// RiskEngine bounds downside and enforces settlement-buffer discipline. It
// never blocks the Accumulator or Equalizer directly; it only sets the
// halt flag and, on stop-loss, liquidates.
type RiskEngine struct {
	venue  venue.Venue
	store  store.Store
	params domain.TradingParams
	logger *slog.Logger

	flow *flowTracker

	mu        sync.RWMutex
	lastLevel domain.RiskLevel
}

// NewRiskEngine builds a RiskEngine bound to a venue and store.
func NewRiskEngine(v venue.Venue, st store.Store, params domain.TradingParams, logger *slog.Logger) *RiskEngine {
	return &RiskEngine{
		venue:     v,
		store:     st,
		params:    params,
		logger:    logger.With("component", "risk_engine"),
		flow:      newFlowTracker(),
		lastLevel: domain.RiskLow,
	}
}

// LastRiskLevel returns the risk level computed by the most recent check,
// or RiskLow before the first check has run. Safe for concurrent use; the
// Orchestrator's status endpoint reads this from outside the risk loop's
// goroutine.
func (r *RiskEngine) LastRiskLevel() domain.RiskLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastLevel
}

// PanicClose immediately liquidates the position and halts trading,
// bypassing the normal stop-loss threshold. Exposed for the Orchestrator's
// manual kill-switch control surface.
func (r *RiskEngine) PanicClose(ctx context.Context, market domain.Market) {
	r.emergencyLiquidation(ctx, market)
}

// RecordFill feeds a completed trade into the flow-toxicity tracker. The
// Orchestrator calls this after every Accumulator/Equalizer fill.
func (r *RiskEngine) RecordFill(trade domain.Trade) {
	r.flow.record(trade)
}

// Run executes the risk-check loop every 5 seconds until ctx is cancelled.
func (r *RiskEngine) Run(ctx context.Context, market domain.Market) error {
	ticker := time.NewTicker(riskInterval)
	defer ticker.Stop()

	r.logger.Info("risk engine started", "market", market.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := r.runChecks(ctx, market); err != nil {
			r.logger.Error("risk check failed", "error", err)
		}
	}
}

func (r *RiskEngine) runChecks(ctx context.Context, market domain.Market) error {
	pos, err := r.store.GetPosition(ctx)
	if err != nil {
		return err
	}

	bookCtx, cancel := withVenueTimeout(ctx)
	book, err := r.venue.GetMarketOrderBook(bookCtx, market)
	cancel()
	if err != nil {
		return err
	}

	deltaOK := r.checkMaxDelta(pos)
	liquidityOK := r.checkLiquidityDepth(pos, book)
	stopLoss, unrealizedPnL := r.checkBailoutStopLoss(pos, book)
	settlementRisk := market.WithinSettlementBuffer(time.Now(), r.params.SettlementBufferSeconds)

	level := classifyRiskLevel(deltaOK, liquidityOK, stopLoss, settlementRisk)
	r.mu.Lock()
	r.lastLevel = level
	r.mu.Unlock()

	metrics := r.buildMetrics(pos, book, market, unrealizedPnL, level)
	if err := r.store.UpdateMetrics(ctx, metrics.ToMap()); err != nil {
		r.logger.Error("persist risk metrics", "error", err)
	}

	switch {
	case stopLoss:
		r.logger.Error("stop loss triggered, initiating emergency liquidation",
			"unrealized_pnl", unrealizedPnL)
		r.emergencyLiquidation(ctx, market)
	case settlementRisk:
		r.logger.Warn("settlement buffer reached, halting accumulation")
		if err := r.store.SetHaltFlag(ctx, true); err != nil {
			return err
		}
	}

	return nil
}

// checkMaxDelta is informational: the Accumulator and Equalizer already
// enforce the delta constraint structurally, so a breach here only affects
// the reported risk level.
func (r *RiskEngine) checkMaxDelta(pos domain.Position) bool {
	if pos.Delta.Abs().GreaterThan(r.params.MaxUnhedgedDelta) {
		r.logger.Warn("delta constraint violated", "delta", pos.Delta, "max", r.params.MaxUnhedgedDelta)
		return false
	}
	return true
}

// checkLiquidityDepth reports whether there is enough resting ask depth on
// each side to unwind the corresponding leg of the position.
func (r *RiskEngine) checkLiquidityDepth(pos domain.Position, book domain.OrderBook) bool {
	yesLiquidity := book.GetDepth(domain.YES, domain.Ask, riskLiquidityLevels)
	noLiquidity := book.GetDepth(domain.NO, domain.Ask, riskLiquidityLevels)

	ok := true
	if yesLiquidity.LessThan(pos.QtyYes) {
		r.logger.Warn("insufficient YES liquidity to unwind", "have", yesLiquidity, "need", pos.QtyYes)
		ok = false
	}
	if noLiquidity.LessThan(pos.QtyNo) {
		r.logger.Warn("insufficient NO liquidity to unwind", "have", noLiquidity, "need", pos.QtyNo)
		ok = false
	}
	return ok
}

// checkBailoutStopLoss reports whether the position's mark-to-market loss
// exceeds bailout_stop_loss_percent of its cost basis, along with the
// unrealized P&L used for the metrics snapshot (zero if mid prices are
// unavailable).
func (r *RiskEngine) checkBailoutStopLoss(pos domain.Position, book domain.OrderBook) (bool, decimal.Decimal) {
	midYes, okYes := book.Mid(domain.YES)
	midNo, okNo := book.Mid(domain.NO)
	if !okYes || !okNo {
		return false, decimalZero
	}

	positionValue := pos.QtyYes.Mul(midYes).Add(pos.QtyNo.Mul(midNo))
	positionCost := pos.CostYes.Add(pos.CostNo)
	unrealizedPnL := positionValue.Sub(positionCost)

	lossThreshold := positionCost.Mul(r.params.BailoutStopLossPercent).Div(decimal.NewFromInt(100))
	if unrealizedPnL.LessThan(lossThreshold.Neg()) {
		r.logger.Error("stop-loss threshold breached", "unrealized_pnl", unrealizedPnL, "threshold", lossThreshold.Neg())
		return true, unrealizedPnL
	}
	return false, unrealizedPnL
}

func classifyRiskLevel(deltaOK, liquidityOK, stopLoss, settlementRisk bool) domain.RiskLevel {
	switch {
	case stopLoss:
		return domain.RiskCritical
	case !deltaOK || !liquidityOK:
		return domain.RiskHigh
	case settlementRisk:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func (r *RiskEngine) buildMetrics(pos domain.Position, book domain.OrderBook, market domain.Market, unrealizedPnL decimal.Decimal, level domain.RiskLevel) domain.RiskMetrics {
	return domain.RiskMetrics{
		CurrentDelta:      pos.Delta,
		MaxDelta:          r.params.MaxUnhedgedDelta,
		PairCost:          pos.PairCost,
		LockedProfit:      pos.LockedProfit,
		UnrealizedPnL:     unrealizedPnL,
		TimeToSettlement:  market.TimeToExpiration(time.Now()),
		LiquidityDepthYes: book.GetDepth(domain.YES, domain.Ask, riskLiquidityLevels),
		LiquidityDepthNo:  book.GetDepth(domain.NO, domain.Ask, riskLiquidityLevels),
		FlowToxicity:      r.flow.score(),
		RiskLevel:         level,
	}
}

// emergencyLiquidation cancels every resting order, then sells down each
// non-zero leg of the position at the current best bid, and halts trading.
// Best-effort: a failed leg is logged and skipped, never retried, since a
// taker order at touch should fill immediately and retrying only delays
// the halt.
func (r *RiskEngine) emergencyLiquidation(ctx context.Context, market domain.Market) {
	r.logger.Error("emergency liquidation initiated")

	r.cancelAllOrders(ctx)

	pos, err := r.store.GetPosition(ctx)
	if err != nil {
		r.logger.Error("emergency liquidation: read position", "error", err)
	} else {
		if pos.QtyYes.GreaterThan(decimalZero) {
			r.marketSell(ctx, market, domain.YES, market.YesTokenID, pos.QtyYes)
		}
		if pos.QtyNo.GreaterThan(decimalZero) {
			r.marketSell(ctx, market, domain.NO, market.NoTokenID, pos.QtyNo)
		}
	}

	if err := r.store.SetHaltFlag(ctx, true); err != nil {
		r.logger.Error("emergency liquidation: set halt flag", "error", err)
	}
	r.logger.Error("emergency liquidation completed")
}

func (r *RiskEngine) cancelAllOrders(ctx context.Context) {
	listCtx, cancel := withVenueTimeout(ctx)
	orders, err := r.venue.GetOpenOrders(listCtx)
	cancel()
	if err != nil {
		r.logger.Error("cancel all orders: list open orders", "error", err)
		return
	}

	for _, o := range orders {
		cancelCtx, cancel := withVenueTimeout(ctx)
		_, err := r.venue.CancelOrder(cancelCtx, o.ID)
		cancel()
		if err != nil {
			r.logger.Error("cancel order failed", "order_id", o.ID, "error", err)
		}
	}
	r.logger.Info("cancelled open orders", "count", len(orders))
}

func (r *RiskEngine) marketSell(ctx context.Context, market domain.Market, side domain.Side, tokenID string, qty decimal.Decimal) {
	bookCtx, cancel := withVenueTimeout(ctx)
	bids, _, err := r.venue.GetOrderBook(bookCtx, tokenID)
	cancel()
	if err != nil {
		r.logger.Error("market sell: read order book", "side", side, "error", err)
		return
	}

	bestBid := decimal.NewFromFloat(0.01)
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}

	if err := executeSell(ctx, r.venue, r.store, market, side, tokenID, bestBid, qty); err != nil {
		r.logger.Error("market sell failed", "side", side, "error", err)
		return
	}
	r.logger.Info("market sell executed", "side", side, "qty", qty, "price", bestBid)
}
