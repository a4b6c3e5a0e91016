package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// maxWatchRetries bounds the optimistic-concurrency retry loop in
// UpdatePositionAtomic, per §9: "the retry path must bound recursion to
// avoid stack blow-ups under contention."
const maxWatchRetries = 32

// RedisStore is the production Store implementation, grounded directly on
// the source project's redis.asyncio StateManager: the same key names, the
// same WATCH/MULTI optimistic-concurrency pattern for position updates, and
// the same capped sorted set for trade history.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) GetPosition(ctx context.Context) (domain.Position, error) {
	return s.getPosition(ctx, s.rdb)
}

func (s *RedisStore) getPosition(ctx context.Context, cmdable redis.Cmdable) (domain.Position, error) {
	raw, err := cmdable.Get(ctx, KeyPosition).Result()
	if errors.Is(err, redis.Nil) {
		return domain.NewPosition(), nil
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("get position: %w", err)
	}
	var p domain.Position
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Position{}, fmt.Errorf("unmarshal position: %w", err)
	}
	return p, nil
}

// UpdatePositionAtomic implements the read-modify-write over KeyPosition
// using Redis's optimistic WATCH/MULTI transaction: the position is read,
// the delta is applied and derived fields recomputed in-process, and the
// result is written back inside a MULTI/EXEC guarded by the WATCH. A
// concurrent writer between the WATCH and the EXEC aborts the transaction
// with redis.TxFailedErr, at which point the whole read-modify-write is
// retried, bounded by maxWatchRetries.
func (s *RedisStore) UpdatePositionAtomic(ctx context.Context, side domain.Side, qtyDelta, costDelta decimal.Decimal) (domain.Position, error) {
	var result domain.Position

	txf := func(tx *redis.Tx) error {
		pos, err := s.getPosition(ctx, tx)
		if err != nil {
			return err
		}
		pos.ApplyDelta(side, qtyDelta, costDelta)

		data, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, KeyPosition, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = pos
		return nil
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, KeyPosition)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // optimistic conflict, retry per §4.1/§7
		}
		return domain.Position{}, fmt.Errorf("update position atomic: %w", err)
	}
	return domain.Position{}, domain.ErrConflictExhausted
}

func (s *RedisStore) AddTrade(ctx context.Context, trade domain.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	score := float64(trade.Timestamp.UnixNano())
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, KeyTrades, redis.Z{Score: score, Member: data})
		pipe.ZRemRangeByRank(ctx, KeyTrades, 0, -int64(MaxTrades)-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add trade: %w", err)
	}
	return nil
}

func (s *RedisStore) GetRecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = MaxTrades
	}
	raws, err := s.rdb.ZRevRange(ctx, KeyTrades, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}
	trades := make([]domain.Trade, 0, len(raws))
	for _, raw := range raws {
		var t domain.Trade
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func (s *RedisStore) GetTradeCount(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, KeyTrades).Result()
	if err != nil {
		return 0, fmt.Errorf("get trade count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) SaveMarket(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal market: %w", err)
	}
	if err := s.rdb.Set(ctx, KeyMarket, data, 0).Err(); err != nil {
		return fmt.Errorf("save market: %w", err)
	}
	return nil
}

func (s *RedisStore) GetMarket(ctx context.Context) (domain.Market, bool, error) {
	raw, err := s.rdb.Get(ctx, KeyMarket).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Market{}, false, nil
	}
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("get market: %w", err)
	}
	var m domain.Market
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.Market{}, false, fmt.Errorf("unmarshal market: %w", err)
	}
	return m, true, nil
}

func (s *RedisStore) SetHaltFlag(ctx context.Context, halted bool) error {
	val := "0"
	if halted {
		val = "1"
	}
	if err := s.rdb.Set(ctx, KeyHalt, val, 0).Err(); err != nil {
		return fmt.Errorf("set halt flag: %w", err)
	}
	return nil
}

func (s *RedisStore) IsHalted(ctx context.Context) (bool, error) {
	val, err := s.rdb.Get(ctx, KeyHalt).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is halted: %w", err)
	}
	return val == "1", nil
}

func (s *RedisStore) UpdateMetrics(ctx context.Context, metrics map[string]string) error {
	if len(metrics) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(metrics))
	for k, v := range metrics {
		fields[k] = v
	}
	if err := s.rdb.HSet(ctx, KeyMetrics, fields).Err(); err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}
	return nil
}

func (s *RedisStore) GetMetrics(ctx context.Context) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, KeyMetrics).Result()
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return m, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	if err := s.rdb.Del(ctx, KeyPosition, KeyTrades, KeyMarket, KeyMetrics, KeyHalt).Err(); err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	return nil
}
