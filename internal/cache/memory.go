package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjannette/coinledger/internal/models"
)

type entry struct {
	candles []models.Candle
	expires time.Time
}

// MemoryCache keeps candle lists in process until their TTL passes.
type MemoryCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]entry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, data: map[string]entry{}}
}

func (m *MemoryCache) GetCandles(ctx context.Context, key string) ([]models.Candle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.data, key)
		return nil, false, nil
	}
	return append([]models.Candle(nil), e.candles...), true, nil
}

func (m *MemoryCache) SetCandles(ctx context.Context, key string, candles []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{candles: append([]models.Candle(nil), candles...), expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryCache) Close() error { return nil }
