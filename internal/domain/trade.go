package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an append-only execution record. Trades are never mutated after
// creation; the State Store retains only the most recent 1,000.
type Trade struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	Side              Side            `json:"side"`
	Price             decimal.Decimal `json:"price"`
	Qty               decimal.Decimal `json:"qty"`
	ResultingPairCost decimal.Decimal `json:"resulting_pair_cost"`
	ResultingDelta    decimal.Decimal `json:"resulting_delta"`
	VenueOrderID      string          `json:"venue_order_id,omitempty"`
	MarketID          string          `json:"market_id"`
}

// NewTrade builds a Trade from an executed fill and the position snapshot
// that resulted from committing it, per §4.3 step 4 / §4.4.
func NewTrade(id string, side Side, price, qty decimal.Decimal, venueOrderID, marketID string, resultingPosition Position) Trade {
	return Trade{
		ID:                id,
		Timestamp:         time.Now().UTC(),
		Side:              side,
		Price:             price,
		Qty:               qty,
		ResultingPairCost: resultingPosition.PairCost,
		ResultingDelta:    resultingPosition.Delta,
		VenueOrderID:      venueOrderID,
		MarketID:          marketID,
	}
}
