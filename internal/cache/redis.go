package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjannette/coinledger/internal/models"
)

// RedisCache stores candle lists as JSON strings with a TTL. When Redis
// errors it falls back to an in-memory cache so the caller only sees a miss.
type RedisCache struct {
	rdb *redis.Client
	mem *MemoryCache
	ttl time.Duration
	log *slog.Logger
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration, log *slog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{
		rdb: rdb,
		mem: NewMemoryCache(ttl),
		ttl: ttl,
		log: log.With("component", "cache"),
	}, nil
}

func candleKey(key string) string { return "coinledger:candles:" + key }

func (r *RedisCache) GetCandles(ctx context.Context, key string) ([]models.Candle, bool, error) {
	b, err := r.rdb.Get(ctx, candleKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		r.log.Warn("redis get failed, using memory cache", "key", key, "err", err)
		return r.mem.GetCandles(ctx, key)
	}
	var candles []models.Candle
	if err := json.Unmarshal(b, &candles); err != nil {
		return nil, false, fmt.Errorf("decode cached candles: %w", err)
	}
	return candles, true, nil
}

func (r *RedisCache) SetCandles(ctx context.Context, key string, candles []models.Candle) error {
	b, err := json.Marshal(candles)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, candleKey(key), b, r.ttl).Err(); err != nil {
		r.log.Warn("redis set failed, using memory cache", "key", key, "err", err)
		return r.mem.SetCandles(ctx, key, candles)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
