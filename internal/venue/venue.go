// Package venue declares the Venue Interface: the narrow contract the core
// components (Accumulator, Equalizer, Risk Engine) use for market data and
// order operations. The core treats the venue as an opaque collaborator —
// it only ever calls the five methods below, never reaching into wire
// formats, signing, or transport.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// OrderID is the venue's opaque identifier for a placed order.
type OrderID string

// OpenOrder is a resting order as reported back by the venue, normalized to
// decimal quantities regardless of the wire's string/float representation.
type OpenOrder struct {
	ID           OrderID
	TokenID      string
	Side         domain.OrderAction
	Price        decimal.Decimal
	OriginalSize decimal.Decimal
	SizeMatched  decimal.Decimal
}

// Venue is the contract required by the core per the Venue Interface
// section: market data reads and the three order operations. Every method
// takes a context so callers can enforce the wall-clock timeout the core
// applies to venue calls.
type Venue interface {
	// GetMarketOrderBook returns a snapshot of all four sides (YES/NO ×
	// bid/ask) for the given market, sorted best-price-first on each side.
	GetMarketOrderBook(ctx context.Context, market domain.Market) (domain.OrderBook, error)

	// GetOrderBook is the single-leg convenience form: one token's bid and
	// ask levels.
	GetOrderBook(ctx context.Context, tokenID string) ([]domain.OrderBookEntry, []domain.OrderBookEntry, error)

	// PlaceLimitOrder submits a limit order. postOnly=true means "do not
	// cross the book"; postOnly=false allows the order to take liquidity.
	// Returns the venue's order id, or an error if the venue rejected or
	// could not be reached. A nil error with an empty OrderID never
	// happens — rejection is always surfaced as an error so the caller's
	// ErrNoOrderID path is reachable only via explicit empty-id checks at
	// the adapter boundary.
	PlaceLimitOrder(ctx context.Context, tokenID string, action domain.OrderAction, price, size decimal.Decimal, postOnly bool) (OrderID, error)

	// CancelOrder cancels a single resting order. Returns false (not an
	// error) if the venue reports the order was already gone.
	CancelOrder(ctx context.Context, id OrderID) (bool, error)

	// GetOpenOrders lists every order still resting at the venue.
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)
}
