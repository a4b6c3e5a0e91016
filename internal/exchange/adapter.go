// adapter.go implements venue.Venue against the Polymarket CLOB: the REST
// Client handles order operations, two WSFeed connections keep a local
// order book and open-order set current, matching the way Maker used to
// fold WS events into its own activeOrders map.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/venue"
	"gabagool-mm/pkg/types"
)

var _ venue.Venue = (*Adapter)(nil)

// feedRecheckInterval bounds how often Run checks whether the subscribed
// market has entered its settlement buffer, the same way Accumulator.Run
// notices it on its own scan ticks.
const feedRecheckInterval = time.Second

// Adapter implements venue.Venue by composing the REST Client with the
// market and user WebSocket feeds.
type Adapter struct {
	client                  *Client
	marketFeed              *WSFeed
	userFeed                *WSFeed
	negRisk                 bool
	settlementBufferSeconds int
	logger                  *slog.Logger

	booksMu sync.RWMutex
	books   map[string]tokenBook // tokenID -> local book

	ordersMu sync.Mutex
	orders   map[venue.OrderID]venue.OpenOrder
}

type tokenBook struct {
	bids []domain.OrderBookEntry
	asks []domain.OrderBookEntry
}

// NewAdapter wires a REST client and the two WS feeds into a Venue.
// settlementBufferSeconds mirrors domain.TradingParams.SettlementBufferSeconds
// so Run can drop its subscriptions and return in step with the rest of the
// supervised tasks once the active market is about to settle.
func NewAdapter(client *Client, marketFeed, userFeed *WSFeed, negRisk bool, settlementBufferSeconds int, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:                  client,
		marketFeed:              marketFeed,
		userFeed:                userFeed,
		negRisk:                 negRisk,
		settlementBufferSeconds: settlementBufferSeconds,
		logger:                  logger.With("component", "venue_adapter"),
		books:                   make(map[string]tokenBook),
		orders:                  make(map[venue.OrderID]venue.OpenOrder),
	}
}

// Run subscribes both feeds to the given market's tokens/condition and
// folds incoming WS events into local state until ctx is cancelled or the
// market reaches its settlement buffer, matching Accumulator.Run so the
// orchestrator's supervision loop can relaunch it
// against a freshly selected market the same way it relaunches the other
// three tasks.
func (a *Adapter) Run(ctx context.Context, market domain.Market) error {
	if err := a.marketFeed.Subscribe(ctx, []string{market.YesTokenID, market.NoTokenID}); err != nil {
		return fmt.Errorf("subscribe market feed: %w", err)
	}
	if err := a.userFeed.Subscribe(ctx, []string{market.ConditionID}); err != nil {
		return fmt.Errorf("subscribe user feed: %w", err)
	}

	ticker := time.NewTicker(feedRecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if market.WithinSettlementBuffer(time.Now(), a.settlementBufferSeconds) {
				a.logger.Warn("settlement buffer reached, stopping feed subscriptions", "market", market.ID)
				return nil
			}
		case evt := <-a.marketFeed.BookEvents():
			a.applyBookSnapshot(evt)
		case evt := <-a.marketFeed.PriceChangeEvents():
			a.applyPriceChanges(evt)
		case evt := <-a.userFeed.OrderEvents():
			a.applyOrderEvent(evt)
		}
	}
}

func (a *Adapter) applyBookSnapshot(evt types.WSBookEvent) {
	bids := parseLevels(evt.Buys)
	asks := parseLevels(evt.Sells)
	a.booksMu.Lock()
	a.books[evt.AssetID] = tokenBook{bids: bids, asks: asks}
	a.booksMu.Unlock()
}

func (a *Adapter) applyPriceChanges(evt types.WSPriceChangeEvent) {
	a.booksMu.Lock()
	defer a.booksMu.Unlock()
	for _, pc := range evt.PriceChanges {
		book := a.books[pc.AssetID]
		price, err := decimal.NewFromString(pc.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(pc.Size)
		if err != nil {
			continue
		}
		switch types.Side(pc.Side) {
		case types.BUY:
			book.bids = upsertLevel(book.bids, price, size)
		case types.SELL:
			book.asks = upsertLevel(book.asks, price, size)
		}
		a.books[pc.AssetID] = book
	}
}

func (a *Adapter) applyOrderEvent(evt types.WSOrderEvent) {
	a.ordersMu.Lock()
	defer a.ordersMu.Unlock()
	id := venue.OrderID(evt.ID)
	switch evt.Type {
	case "CANCELLATION":
		delete(a.orders, id)
	case "UPDATE":
		if order, ok := a.orders[id]; ok {
			order.SizeMatched = parseDecimalOr(evt.SizeMatched, order.SizeMatched)
			a.orders[id] = order
		}
	case "PLACEMENT":
		if _, ok := a.orders[id]; !ok {
			a.orders[id] = venue.OpenOrder{
				ID:           id,
				TokenID:      evt.AssetID,
				Side:         actionFromWire(evt.Side),
				Price:        parseDecimalOr(evt.Price, decimal.Zero),
				OriginalSize: parseDecimalOr(evt.OriginalSize, decimal.Zero),
				SizeMatched:  parseDecimalOr(evt.SizeMatched, decimal.Zero),
			}
		}
	}
}

// upsertLevel replaces the entry at price with size, removing it if size
// is zero, matching the market channel's incremental price_change contract.
func upsertLevel(levels []domain.OrderBookEntry, price, size decimal.Decimal) []domain.OrderBookEntry {
	for i, lvl := range levels {
		if lvl.Price.Equal(price) {
			if size.IsZero() {
				return append(levels[:i], levels[i+1:]...)
			}
			levels[i].Size = size
			return levels
		}
	}
	if size.IsZero() {
		return levels
	}
	return append(levels, domain.OrderBookEntry{Price: price, Size: size})
}

func parseLevels(levels []types.PriceLevel) []domain.OrderBookEntry {
	out := make([]domain.OrderBookEntry, 0, len(levels))
	for _, lvl := range levels {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		out = append(out, domain.OrderBookEntry{Price: price, Size: size})
	}
	return out
}

func parseDecimalOr(s string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return v
}

func actionFromWire(side string) domain.OrderAction {
	if types.Side(side) == types.SELL {
		return domain.ActionSell
	}
	return domain.ActionBuy
}

// GetMarketOrderBook returns the local WS-maintained book for both tokens,
// falling back to a REST fetch for a token the feed hasn't snapshotted yet.
func (a *Adapter) GetMarketOrderBook(ctx context.Context, market domain.Market) (domain.OrderBook, error) {
	yesBids, yesAsks, err := a.GetOrderBook(ctx, market.YesTokenID)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("yes book: %w", err)
	}
	noBids, noAsks, err := a.GetOrderBook(ctx, market.NoTokenID)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("no book: %w", err)
	}
	return domain.OrderBook{
		YesBids: yesBids,
		YesAsks: yesAsks,
		NoBids:  noBids,
		NoAsks:  noAsks,
	}, nil
}

func (a *Adapter) GetOrderBook(ctx context.Context, tokenID string) ([]domain.OrderBookEntry, []domain.OrderBookEntry, error) {
	a.booksMu.RLock()
	book, ok := a.books[tokenID]
	a.booksMu.RUnlock()
	if ok {
		return sortedBids(book.bids), sortedAsks(book.asks), nil
	}

	resp, err := a.client.GetOrderBook(ctx, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch order book: %w", err)
	}
	bids := parseLevels(resp.Bids)
	asks := parseLevels(resp.Asks)

	a.booksMu.Lock()
	a.books[tokenID] = tokenBook{bids: bids, asks: asks}
	a.booksMu.Unlock()

	return sortedBids(bids), sortedAsks(asks), nil
}

// sortedBids/sortedAsks return a best-price-first copy of the given levels.
// The WS feed's book/price_change events carry levels in arbitrary order,
// but the Venue Interface contract guarantees index 0 is top-of-book.
func sortedBids(levels []domain.OrderBookEntry) []domain.OrderBookEntry {
	out := append([]domain.OrderBookEntry(nil), levels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	return out
}

func sortedAsks(levels []domain.OrderBookEntry) []domain.OrderBookEntry {
	out := append([]domain.OrderBookEntry(nil), levels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

// PlaceLimitOrder submits a single order via the batch endpoint and records
// it in the local open-order set on success.
func (a *Adapter) PlaceLimitOrder(ctx context.Context, tokenID string, action domain.OrderAction, price, size decimal.Decimal, postOnly bool) (venue.OrderID, error) {
	side := types.BUY
	if action == domain.ActionSell {
		side = types.SELL
	}

	priceF, _ := price.Float64()
	sizeF, _ := size.Float64()

	order := types.UserOrder{
		TokenID:    tokenID,
		Price:      priceF,
		Size:       sizeF,
		Side:       side,
		OrderType:  types.OrderTypeGTC,
		TickSize:   types.Tick001,
		Expiration: 0,
		FeeRateBps: 0,
		PostOnly:   postOnly,
	}

	results, err := a.client.PostOrders(ctx, []types.UserOrder{order}, a.negRisk)
	if err != nil {
		return "", fmt.Errorf("place limit order: %w", err)
	}
	if len(results) == 0 || !results[0].Success || results[0].OrderID == "" {
		msg := "no result"
		if len(results) > 0 {
			msg = results[0].ErrorMsg
		}
		return "", fmt.Errorf("order rejected: %s", msg)
	}

	id := venue.OrderID(results[0].OrderID)
	a.ordersMu.Lock()
	a.orders[id] = venue.OpenOrder{
		ID:           id,
		TokenID:      tokenID,
		Side:         action,
		Price:        price,
		OriginalSize: size,
		SizeMatched:  decimal.Zero,
	}
	a.ordersMu.Unlock()

	return id, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, id venue.OrderID) (bool, error) {
	resp, err := a.client.CancelOrders(ctx, []string{string(id)})
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	a.ordersMu.Lock()
	delete(a.orders, id)
	a.ordersMu.Unlock()

	for _, canceled := range resp.Canceled {
		if canceled == string(id) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	a.ordersMu.Lock()
	defer a.ordersMu.Unlock()
	out := make([]venue.OpenOrder, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	return out, nil
}
