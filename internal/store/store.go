// Package store implements the durable, atomic State Store: the single
// linearization point for Position mutations and the ledger for trades,
// market, the halt flag, and metrics.
//
// Two implementations satisfy the Store interface: RedisStore, backed by
// Redis and grounded directly on the source project's redis.asyncio
// StateManager (WATCH/MULTI optimistic concurrency over the position key,
// a capped sorted set for trades), and MemoryStore, an in-process
// mutex-guarded store used in tests and as the Redis-less fallback
// described in §9's "single-writer variant."
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// Redis key prefixes, matching the source project's StateManager key
// naming (gabagool:*) so the persisted shape is recognizable across both
// implementations.
const (
	KeyPosition = "gabagool:position"
	KeyTrades   = "gabagool:trades"
	KeyMarket   = "gabagool:market"
	KeyMetrics  = "gabagool:metrics"
	KeyHalt     = "gabagool:halt"
)

// MaxTrades is the retention cap on the trade log (§3).
const MaxTrades = 1000

// Store is the State Store contract of §4.1. All position mutation must go
// through UpdatePositionAtomic; GetPosition returns a point-in-time
// snapshot that may be stale by the time a caller acts on it (§5).
type Store interface {
	GetPosition(ctx context.Context) (domain.Position, error)

	// UpdatePositionAtomic applies (qtyDelta, costDelta) to the named
	// side's primaries and returns the resulting, fully-recomputed
	// Position. Implementations must guarantee linearizability: under
	// concurrent callers, the result is equivalent to some serial order of
	// application.
	UpdatePositionAtomic(ctx context.Context, side domain.Side, qtyDelta, costDelta decimal.Decimal) (domain.Position, error)

	AddTrade(ctx context.Context, trade domain.Trade) error
	GetRecentTrades(ctx context.Context, limit int) ([]domain.Trade, error)
	GetTradeCount(ctx context.Context) (int64, error)

	SaveMarket(ctx context.Context, m domain.Market) error
	GetMarket(ctx context.Context) (domain.Market, bool, error)

	SetHaltFlag(ctx context.Context, halted bool) error
	IsHalted(ctx context.Context) (bool, error)

	UpdateMetrics(ctx context.Context, metrics map[string]string) error
	GetMetrics(ctx context.Context) (map[string]string, error)

	ClearAll(ctx context.Context) error
}
