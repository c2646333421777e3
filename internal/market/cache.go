package market

import (
	"strings"
	"sync"
	"time"

	"tradepilot/internal/types"
)

// quoteCache 是一个简单的 TTL 缓存：map + 过期时间戳，读多写少。
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedQuote
}

type cachedQuote struct {
	quote     types.Quote
	expiresAt time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{
		ttl:     ttl,
		entries: make(map[string]cachedQuote),
	}
}

func (c *quoteCache) get(symbol string) (types.Quote, bool) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return types.Quote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) put(symbol string, quote types.Quote) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.Lock()
	c.entries[key] = cachedQuote{quote: quote, expiresAt: time.Now().Add(c.ttl)}
	// 顺手清理过期条目，避免长尾无限增长。
	if len(c.entries) > 256 {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()
}
