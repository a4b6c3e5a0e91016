package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the single authoritative inventory record for a market.
// QtyYes, CostYes, QtyNo, CostNo are the only primary fields; every other
// field is derived and must be recomputed from them on every mutation —
// never stored independently.
type Position struct {
	QtyYes  decimal.Decimal `json:"qty_yes"`
	CostYes decimal.Decimal `json:"cost_yes"`
	QtyNo   decimal.Decimal `json:"qty_no"`
	CostNo  decimal.Decimal `json:"cost_no"`

	AvgYes decimal.Decimal `json:"avg_yes"`
	AvgNo  decimal.Decimal `json:"avg_no"`

	PairCost     decimal.Decimal `json:"pair_cost"`
	Delta        decimal.Decimal `json:"delta"`
	PairedQty    decimal.Decimal `json:"paired_qty"`
	LockedProfit decimal.Decimal `json:"locked_profit"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewPosition returns a flat, zeroed position with derived fields already
// consistent with (zero) primaries.
func NewPosition() Position {
	var p Position
	p.Recompute()
	return p
}

// Qty returns the primary quantity for a side.
func (p Position) Qty(side Side) decimal.Decimal {
	if side == YES {
		return p.QtyYes
	}
	return p.QtyNo
}

// Cost returns the primary cost basis for a side.
func (p Position) Cost(side Side) decimal.Decimal {
	if side == YES {
		return p.CostYes
	}
	return p.CostNo
}

// Avg returns the derived average entry price for a side, 0 when the side
// carries no inventory.
func (p Position) Avg(side Side) decimal.Decimal {
	if side == YES {
		return p.AvgYes
	}
	return p.AvgNo
}

// ApplyDelta mutates the primaries for side by (qtyDelta, costDelta) and
// recomputes every derived field. A negative qtyDelta/costDelta represents a
// sell; callers are responsible for ensuring the resulting primaries do not
// go negative. Neither ApplyDelta nor either State Store implementation
// checks this: a delta that drives a primary below zero is committed as is.
func (p *Position) ApplyDelta(side Side, qtyDelta, costDelta decimal.Decimal) {
	switch side {
	case YES:
		p.QtyYes = p.QtyYes.Add(qtyDelta)
		p.CostYes = p.CostYes.Add(costDelta)
	case NO:
		p.QtyNo = p.QtyNo.Add(qtyDelta)
		p.CostNo = p.CostNo.Add(costDelta)
	}
	p.Recompute()
}

// Recompute derives Avg{Yes,No}, PairCost, Delta, PairedQty, and
// LockedProfit from the primary fields. It is the single place that
// implements §3's derived-field formulas; callers must call it after any
// mutation of the primaries, and must never persist a derived field that
// didn't come from this function applied to the primaries being stored.
func (p *Position) Recompute() {
	p.AvgYes = avg(p.CostYes, p.QtyYes)
	p.AvgNo = avg(p.CostNo, p.QtyNo)
	p.PairCost = p.AvgYes.Add(p.AvgNo)
	p.Delta = p.QtyYes.Sub(p.QtyNo)
	p.PairedQty = decimal.Min(p.QtyYes, p.QtyNo)

	oneMinusPairCost := decimal.NewFromInt(1).Sub(p.PairCost)
	if oneMinusPairCost.IsNegative() {
		oneMinusPairCost = decimal.Zero
	}
	p.LockedProfit = p.PairedQty.Mul(oneMinusPairCost)
}

func avg(cost, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	return cost.DivRound(qty, 12)
}
