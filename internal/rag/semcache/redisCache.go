package semcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/redisStore"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

const cacheKeyPrefix = "semcache:"

var _ Cache = (*RedisCache)(nil)

// cachedEntry is the Redis value: the winning result plus a copy of the
// embedding that scored it.
type cachedEntry struct {
	Result    docModel.SearchResult `json:"result"`
	Embedding []float32             `json:"embedding,omitempty"`
}

// RedisCache shares one semantic cache across processes. Expiry is native
// Redis TTL, so there is no sweep to run here.
type RedisCache struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func GetRedisCache(ctx context.Context) *RedisCache {
	inner := redisStore.GetRedisStore(ctx, config.RedisCacheStore)
	if inner == nil {
		return nil
	}
	return &RedisCache{
		store:  inner,
		ttl:    config.SemanticCacheTTL,
		logger: logger_i.NewLogger("SemanticCache"),
	}
}

func (c *RedisCache) Lookup(ctx context.Context, query string) (docModel.SearchResult, bool) {
	key := cacheKeyPrefix + Normalize(query)
	val, err := c.store.Get(ctx, key)
	if c.store.IsNil(err) {
		return docModel.SearchResult{}, false
	}
	if err != nil {
		c.logger.Error("cache lookup failed, treating as miss", "error", err)
		return docModel.SearchResult{}, false
	}
	var cached cachedEntry
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.logger.Error("dropping unreadable cache entry", "key", key, "error", err)
		return docModel.SearchResult{}, false
	}
	return cached.Result, true
}

func (c *RedisCache) Store(ctx context.Context, query string, result docModel.SearchResult, embedding []float32) {
	key := Normalize(query)
	if key == "" {
		return
	}
	data, err := json.Marshal(cachedEntry{Result: result, Embedding: embedding})
	if err != nil {
		c.logger.Error("error marshalling cache entry", "error", err)
		return
	}
	if err := c.store.Set(ctx, cacheKeyPrefix+key, data, c.ttl); err != nil {
		c.logger.Error("error storing cache entry", "error", err)
	}
}

func TestRedisCache(store *redisStore.Store, ttl time.Duration) *RedisCache {
	return &RedisCache{
		store:  store,
		ttl:    ttl,
		logger: logger_i.NewLogger("test cache"),
	}
}
