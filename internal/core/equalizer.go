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

// equalizerInterval is the fixed check cadence per §4.4.
const equalizerInterval = time.Second

// equalizerRetryDelay is the pause between chunks after a failed trade.
const equalizerRetryDelay = 500 * time.Millisecond

// Equalizer keeps |delta| near zero by buying the lagging side until the
// position is paired. It shares the exact trade-execution path with the
// Accumulator.
type Equalizer struct {
	venue  venue.Venue
	store  store.Store
	params domain.TradingParams
	logger *slog.Logger
}

// NewEqualizer builds an Equalizer bound to a venue and store.
func NewEqualizer(v venue.Venue, st store.Store, params domain.TradingParams, logger *slog.Logger) *Equalizer {
	return &Equalizer{
		venue:  v,
		store:  st,
		params: params,
		logger: logger.With("component", "equalizer"),
	}
}

// Run checks for imbalance every second until ctx is cancelled.
func (e *Equalizer) Run(ctx context.Context, market domain.Market) error {
	ticker := time.NewTicker(equalizerInterval)
	defer ticker.Stop()

	e.logger.Info("equalizer started", "market", market.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		halted, err := e.store.IsHalted(ctx)
		if err != nil {
			e.logger.Error("check halt flag", "error", err)
			continue
		}
		if halted {
			continue
		}

		if err := e.checkAndRebalance(ctx, market); err != nil {
			e.logger.Error("check and rebalance", "error", err)
		}
	}
}

func (e *Equalizer) checkAndRebalance(ctx context.Context, market domain.Market) error {
	pos, err := e.store.GetPosition(ctx)
	if err != nil {
		return err
	}

	if pos.Delta.Abs().LessThan(decimalOne) {
		return nil
	}

	e.logger.Info("position imbalance detected", "delta", pos.Delta)

	laggingSide := domain.YES
	if pos.Delta.GreaterThan(decimalZero) {
		laggingSide = domain.NO
	}
	targetQty := pos.Delta.Abs()

	bookCtx, cancel := withVenueTimeout(ctx)
	book, err := e.venue.GetMarketOrderBook(bookCtx, market)
	cancel()
	if err != nil {
		return err
	}

	return e.rebalance(ctx, market, laggingSide, targetQty, pos, book)
}

func (e *Equalizer) rebalance(ctx context.Context, market domain.Market, laggingSide domain.Side, targetQty decimal.Decimal, pos domain.Position, book domain.OrderBook) error {
	oppositeAvg := pos.Avg(laggingSide.Opposite())

	bestAsk, ok := book.BestAsk(laggingSide)
	if !ok {
		e.logger.Warn("no ask available for lagging side", "side", laggingSide)
		return nil
	}

	maxPrice := decimal.NewFromFloat(0.99).Sub(oppositeAvg)
	if maxPrice.LessThanOrEqual(decimalZero) {
		e.logger.Error("cannot rebalance without violating pair-cost ceiling", "max_price", maxPrice)
		return domain.ErrNoMaxPrice
	}

	bidPrice := decimal.Min(bestAsk.Price, maxPrice)

	remaining := targetQty
	for remaining.GreaterThan(decimalZero) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk := decimal.Min(remaining, e.params.TradeSize)
		trade, err := executeTrade(ctx, e.venue, e.store, market, laggingSide, bidPrice, chunk, true)
		if err != nil {
			e.logger.Warn("rebalance trade failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(equalizerRetryDelay):
			}
			continue
		}

		remaining = remaining.Sub(chunk)
		e.logger.Info("rebalance trade executed",
			"side", laggingSide, "qty", chunk, "price", bidPrice, "remaining", remaining,
			"trade_id", trade.ID,
		)
	}
	return nil
}

// ForceRebalance triggers an immediate rebalance check, for use by the
// control surface or the Risk Engine.
func (e *Equalizer) ForceRebalance(ctx context.Context, market domain.Market) error {
	e.logger.Info("force rebalance triggered")
	return e.checkAndRebalance(ctx, market)
}
