package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// MemoryStore is the in-process implementation of Store: a mutex serializes
// every mutation, which is the "single-writer variant" of §9 taken to its
// simplest form — the mutex itself plays the role of the single writer,
// so there is no optimistic retry path to bound. Used by unit tests and as
// the fallback when no Redis endpoint is configured.
type MemoryStore struct {
	mu sync.Mutex

	position    domain.Position
	hasPosition bool

	trades []domain.Trade // newest last; trimmed to MaxTrades
	total  int64          // ever-recorded count (§9 open question: we report "currently retained")

	market    domain.Market
	hasMarket bool

	halted bool

	metrics map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{metrics: make(map[string]string)}
}

func (s *MemoryStore) GetPosition(ctx context.Context) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPosition {
		return domain.NewPosition(), nil
	}
	return s.position, nil
}

func (s *MemoryStore) UpdatePositionAtomic(ctx context.Context, side domain.Side, qtyDelta, costDelta decimal.Decimal) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPosition {
		s.position = domain.NewPosition()
	}
	s.position.ApplyDelta(side, qtyDelta, costDelta)
	s.position.LastUpdated = time.Now().UTC()
	s.hasPosition = true
	return s.position, nil
}

func (s *MemoryStore) AddTrade(ctx context.Context, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, trade)
	s.total++
	if len(s.trades) > MaxTrades {
		s.trades = s.trades[len(s.trades)-MaxTrades:]
	}
	return nil
}

func (s *MemoryStore) GetRecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Trade, n)
	// newest-first
	for i := 0; i < n; i++ {
		out[i] = s.trades[len(s.trades)-1-i]
	}
	return out, nil
}

func (s *MemoryStore) GetTradeCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.trades)), nil
}

func (s *MemoryStore) SaveMarket(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.market = m
	s.hasMarket = true
	return nil
}

func (s *MemoryStore) GetMarket(ctx context.Context) (domain.Market, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market, s.hasMarket, nil
}

func (s *MemoryStore) SetHaltFlag(ctx context.Context, halted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = halted
	return nil
}

func (s *MemoryStore) IsHalted(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted, nil
}

func (s *MemoryStore) UpdateMetrics(ctx context.Context, metrics map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range metrics {
		s.metrics[k] = v
	}
	return nil
}

func (s *MemoryStore) GetMetrics(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = domain.Position{}
	s.hasPosition = false
	s.trades = nil
	s.total = 0
	s.market = domain.Market{}
	s.hasMarket = false
	s.halted = false
	s.metrics = make(map[string]string)
	return nil
}

var _ sort.Interface = (*tradesByTime)(nil)

// tradesByTime is kept for callers that need to re-sort a slice of trades
// fetched from a source that doesn't guarantee order (e.g. Redis ZSET
// results reconstructed from multiple pipeline calls).
type tradesByTime []domain.Trade

func (t tradesByTime) Len() int           { return len(t) }
func (t tradesByTime) Less(i, j int) bool { return t[i].Timestamp.Before(t[j].Timestamp) }
func (t tradesByTime) Swap(i, j int)      { t[i], t[j] = t[j], t[i] }
