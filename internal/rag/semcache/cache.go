package semcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
)

// Cache remembers the best result for recently answered queries, together
// with the embedding that scored it. Lookups and stores never fail, a broken
// cache just behaves like a cold one.
type Cache interface {
	Lookup(ctx context.Context, query string) (docModel.SearchResult, bool)
	Store(ctx context.Context, query string, result docModel.SearchResult, embedding []float32)
}

// Normalize maps a query to its cache key. Two queries that differ only in
// surrounding whitespace or letter case share one entry.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// entries never change once written
type entry struct {
	result     docModel.SearchResult
	embedding  []float32
	insertedAt time.Time
}

type MemoryCache struct {
	mutex   sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     config.SemanticCacheTTL,
		now:     time.Now,
	}
}

func (c *MemoryCache) Lookup(ctx context.Context, query string) (docModel.SearchResult, bool) {
	key := Normalize(query)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.purgeExpiredLocked()
	cached, found := c.entries[key]
	if !found {
		return docModel.SearchResult{}, false
	}
	return cached.result, true
}

func (c *MemoryCache) Store(ctx context.Context, query string, result docModel.SearchResult, embedding []float32) {
	key := Normalize(query)
	if key == "" {
		return
	}
	vector := make([]float32, len(embedding))
	copy(vector, embedding)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = entry{result: result, embedding: vector, insertedAt: c.now()}
}

// purgeExpiredLocked sweeps the whole map, every lookup pays for the sweep so
// dead entries never outlive their TTL by more than one call.
func (c *MemoryCache) purgeExpiredLocked() {
	now := c.now()
	for key, cached := range c.entries {
		if now.Sub(cached.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}
