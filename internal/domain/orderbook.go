package domain

import "github.com/shopspring/decimal"

// OrderBookEntry is a single price level.
type OrderBookEntry struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookSide distinguishes bids from asks within OrderBook.get_depth.
type BookSide string

const (
	Bid BookSide = "BID"
	Ask BookSide = "ASK"
)

// OrderBook holds the four price-sorted sequences of a binary market: the
// YES and NO legs, each with bids (descending) and asks (ascending).
type OrderBook struct {
	YesBids []OrderBookEntry
	YesAsks []OrderBookEntry
	NoBids  []OrderBookEntry
	NoAsks  []OrderBookEntry
}

func (b OrderBook) sideEntries(side Side, bidOrAsk BookSide) []OrderBookEntry {
	switch {
	case side == YES && bidOrAsk == Bid:
		return b.YesBids
	case side == YES && bidOrAsk == Ask:
		return b.YesAsks
	case side == NO && bidOrAsk == Bid:
		return b.NoBids
	default:
		return b.NoAsks
	}
}

// BestAsk returns the top-of-book ask for side, and whether one exists.
func (b OrderBook) BestAsk(side Side) (OrderBookEntry, bool) {
	entries := b.sideEntries(side, Ask)
	if len(entries) == 0 {
		return OrderBookEntry{}, false
	}
	return entries[0], true
}

// BestBid returns the top-of-book bid for side, and whether one exists.
func (b OrderBook) BestBid(side Side) (OrderBookEntry, bool) {
	entries := b.sideEntries(side, Bid)
	if len(entries) == 0 {
		return OrderBookEntry{}, false
	}
	return entries[0], true
}

// Mid returns the mean of the top bid and top ask for side. ok is false if
// either is missing.
func (b OrderBook) Mid(side Side) (mid decimal.Decimal, ok bool) {
	bid, hasBid := b.BestBid(side)
	ask, hasAsk := b.BestAsk(side)
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// GetDepth sums the sizes of the top maxLevels entries on the given side.
func (b OrderBook) GetDepth(side Side, bidOrAsk BookSide, maxLevels int) decimal.Decimal {
	entries := b.sideEntries(side, bidOrAsk)
	if maxLevels > len(entries) {
		maxLevels = len(entries)
	}
	total := decimal.Zero
	for _, e := range entries[:maxLevels] {
		total = total.Add(e.Size)
	}
	return total
}
