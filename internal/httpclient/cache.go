package httpclient

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// PageCache memoizes successful primary page bodies for the duration of one run,
// so providers sharing a listing page fetch it once. It is never persisted.
type PageCache struct {
	c *otter.Cache[string, string]
}

// NewPageCache returns nil when ttl <= 0, which disables caching.
func NewPageCache(ttl time.Duration, maxEntries int) *PageCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &PageCache{c: otter.Must(&otter.Options[string, string]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryWriting[string, string](ttl),
	})}
}

func (p *PageCache) get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.c.GetIfPresent(key)
}

func (p *PageCache) set(key, body string) {
	if p == nil {
		return
	}
	p.c.Set(key, body)
}

func cacheKey(target, referer string) string {
	return target + "\x00" + referer
}
