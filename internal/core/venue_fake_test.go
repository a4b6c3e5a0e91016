package core

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/venue"
)

// fakeVenue is a minimal in-memory venue.Venue double for exercising the
// core loops without the exchange package's REST/WS machinery.
type fakeVenue struct {
	mu sync.Mutex

	book domain.OrderBook

	nextOrderID int
	placed      []placedOrder
	failNext    bool
}

type placedOrder struct {
	tokenID  string
	action   domain.OrderAction
	price    decimal.Decimal
	size     decimal.Decimal
	postOnly bool
}

var _ venue.Venue = (*fakeVenue)(nil)

func (f *fakeVenue) GetMarketOrderBook(ctx context.Context, market domain.Market) (domain.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.book, nil
}

func (f *fakeVenue) GetOrderBook(ctx context.Context, tokenID string) ([]domain.OrderBookEntry, []domain.OrderBookEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tokenID == "no-tok" {
		return f.book.NoBids, f.book.NoAsks, nil
	}
	return f.book.YesBids, f.book.YesAsks, nil
}

func (f *fakeVenue) PlaceLimitOrder(ctx context.Context, tokenID string, action domain.OrderAction, price, size decimal.Decimal, postOnly bool) (venue.OrderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return "", domain.ErrConstraintFailed
	}
	f.nextOrderID++
	f.placed = append(f.placed, placedOrder{tokenID: tokenID, action: action, price: price, size: size, postOnly: postOnly})
	return venue.OrderID(decimal.NewFromInt(int64(f.nextOrderID)).String()), nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, id venue.OrderID) (bool, error) {
	return true, nil
}

func (f *fakeVenue) GetOpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	return nil, nil
}
