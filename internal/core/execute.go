// Package core implements the three long-lived trading loops — Accumulator,
// Equalizer, Risk Engine — that make up the engine described in §4. All
// three share the State Store and Venue Interface but never touch each
// other's internal state directly; the State Store is the only shared
// mutable resource (§5).
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
	"gabagool-mm/internal/venue"
)

// venueTimeout bounds every venue call per §5: "venue operations use a
// 30-second wall-clock timeout; on timeout the operation fails and the
// loop continues."
const venueTimeout = 30 * time.Second

var (
	decimalZero = decimal.Zero
	decimalOne  = decimal.NewFromInt(1)
)

// withVenueTimeout derives a bounded context for a single venue call.
func withVenueTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, venueTimeout)
}

// executeTrade is the single code path for "buy side S quantity q at price
// p": place a limit order at the venue, and on success commit the matching
// position delta and trade record. Both the Accumulator and the Equalizer
// call this — there is exactly one place a position mutation following a
// fill is produced.
func executeTrade(ctx context.Context, v venue.Venue, st store.Store, market domain.Market, side domain.Side, price, qty decimal.Decimal, postOnly bool) (domain.Trade, error) {
	tokenID := market.YesTokenID
	if side == domain.NO {
		tokenID = market.NoTokenID
	}

	orderCtx, cancel := withVenueTimeout(ctx)
	orderID, err := v.PlaceLimitOrder(orderCtx, tokenID, domain.ActionBuy, price, qty, postOnly)
	cancel()
	if err != nil {
		return domain.Trade{}, fmt.Errorf("place limit order: %w", err)
	}
	if orderID == "" {
		return domain.Trade{}, domain.ErrNoOrderID
	}

	cost := price.Mul(qty)
	pos, err := st.UpdatePositionAtomic(ctx, side, qty, cost)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("update position atomic: %w", err)
	}

	trade := domain.NewTrade(uuid.NewString(), side, price, qty, string(orderID), market.ID, pos)
	if err := st.AddTrade(ctx, trade); err != nil {
		return domain.Trade{}, fmt.Errorf("add trade: %w", err)
	}
	return trade, nil
}

// executeSell places a non-post-only (taker) sell and commits the matching
// negative position delta. Used only by emergency liquidation — the
// accumulation/equalization paths never sell.
func executeSell(ctx context.Context, v venue.Venue, st store.Store, market domain.Market, side domain.Side, tokenID string, price, qty decimal.Decimal) error {
	orderCtx, cancel := withVenueTimeout(ctx)
	orderID, err := v.PlaceLimitOrder(orderCtx, tokenID, domain.ActionSell, price, qty, false)
	cancel()
	if err != nil {
		return fmt.Errorf("place market sell: %w", err)
	}
	if orderID == "" {
		return domain.ErrNoOrderID
	}

	cost := price.Mul(qty)
	_, err = st.UpdatePositionAtomic(ctx, side, qty.Neg(), cost.Neg())
	if err != nil {
		return fmt.Errorf("update position atomic: %w", err)
	}
	return nil
}
