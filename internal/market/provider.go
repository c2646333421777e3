// Package market defines the MarketDataProvider capability consumed by the
// trading core, plus a binance-backed reference implementation. 缓存与限流
// 是 provider 的职责，核心只看接口。
package market

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tradepilot/internal/types"
)

// Provider 行情能力接口。
type Provider interface {
	GetCurrentQuote(ctx context.Context, symbol string) (types.Quote, error)
	GetHistoricalData(ctx context.Context, symbol string, days int) ([]types.Bar, error)
}

// ThrottleConfig 控制 ThrottledProvider 的节流与缓存。
type ThrottleConfig struct {
	RatePerSecond float64
	Burst         int
	QuoteTTL      time.Duration
}

// ThrottledProvider 给底层 provider 加一层共享令牌桶 + 报价 TTL 缓存。
// 命中缓存不消耗令牌；获取令牌可能短暂阻塞调用方。
type ThrottledProvider struct {
	inner   Provider
	limiter *rate.Limiter
	cache   *quoteCache
}

// NewThrottledProvider wraps inner with rate limiting and quote caching.
func NewThrottledProvider(inner Provider, cfg ThrottleConfig) *ThrottledProvider {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 5 * time.Second
	}
	return &ThrottledProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cache:   newQuoteCache(cfg.QuoteTTL),
	}
}

func (p *ThrottledProvider) GetCurrentQuote(ctx context.Context, symbol string) (types.Quote, error) {
	if quote, ok := p.cache.get(symbol); ok {
		return quote, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return types.Quote{}, err
	}
	quote, err := p.inner.GetCurrentQuote(ctx, symbol)
	if err != nil {
		return types.Quote{}, err
	}
	p.cache.put(symbol, quote)
	return quote, nil
}

func (p *ThrottledProvider) GetHistoricalData(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.GetHistoricalData(ctx, symbol, days)
}
