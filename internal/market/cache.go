package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// 中文说明：
// 同一轮批量分析中，多个组件会请求相同的 K 线序列（技术指标、权重服务、
// 量异动检测）。CachedSource 在当前 bar 收盘前复用上一次结果，避免重复请求。

type cacheKey struct {
	symbol   string
	interval string
}

type cacheEntry struct {
	candles   []Candle
	fetchedAt time.Time
	ttl       time.Duration
}

// CachedSource 是 Source 的读穿缓存装饰器，仅缓存 K 线历史。
type CachedSource struct {
	inner    Source
	maxLimit int

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
	now   func() time.Time
}

// NewCachedSource 包装底层数据源。maxLimit 限制单次请求的最大 K 线数。
func NewCachedSource(inner Source, maxLimit int) *CachedSource {
	if maxLimit <= 0 {
		maxLimit = 300
	}
	return &CachedSource{
		inner:    inner,
		maxLimit: maxLimit,
		cache:    make(map[cacheKey]cacheEntry),
		now:      time.Now,
	}
}

func (c *CachedSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if c.inner == nil {
		return nil, fmt.Errorf("market source not configured")
	}
	if limit > c.maxLimit {
		limit = c.maxLimit
	}
	key := cacheKey{symbol: symbol, interval: interval}
	now := c.now()

	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) < entry.ttl && len(entry.candles) >= limit {
		return append([]Candle(nil), entry.candles[len(entry.candles)-limit:]...), nil
	}

	candles, err := c.inner.FetchHistory(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	ttl := time.Minute
	if dur, ok := ParseIntervalDuration(interval); ok && len(candles) > 0 {
		// 缓存到当前 bar 收盘为止
		lastClose := time.UnixMilli(candles[len(candles)-1].CloseTime)
		if remaining := lastClose.Add(dur).Sub(now); remaining > 0 && remaining < dur {
			ttl = remaining
		}
	}
	c.mu.Lock()
	c.cache[key] = cacheEntry{candles: append([]Candle(nil), candles...), fetchedAt: now, ttl: ttl}
	c.mu.Unlock()
	return candles, nil
}

func (c *CachedSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if c.inner == nil {
		return 0, fmt.Errorf("market source not configured")
	}
	return c.inner.LatestPrice(ctx, symbol)
}

func (c *CachedSource) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	if c.inner == nil {
		return 0, fmt.Errorf("market source not configured")
	}
	return c.inner.GetFundingRate(ctx, symbol)
}

func (c *CachedSource) GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]OpenInterestPoint, error) {
	if c.inner == nil {
		return nil, fmt.Errorf("market source not configured")
	}
	return c.inner.GetOpenInterestHistory(ctx, symbol, period, limit)
}

func (c *CachedSource) Close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
