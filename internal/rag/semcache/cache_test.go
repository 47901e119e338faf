package semcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/raggio-engine/raggio/internal/data/redisStore"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/redis/go-redis/v9"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Quali sono i REQUISITI?  ", "quali sono i requisiti?"},
		{"ciao", "ciao"},
		{"\tCIAO\n", "ciao"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMemoryCacheHitIgnoresCaseAndWhitespace(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	result := docModel.SearchResult{ChunkId: "chunk-1", Score: 0.92}

	cache.Store(ctx, "quali sono i requisiti", result, nil)

	got, found := cache.Lookup(ctx, "  QUALI sono i Requisiti  ")
	if !found {
		t.Fatal("expected a cache hit")
	}
	if got.ChunkId != "chunk-1" || got.Score != 0.92 {
		t.Errorf("cached result mismatch: %+v", got)
	}

	if _, found := cache.Lookup(ctx, "quali sono i requisiti minimi"); found {
		t.Error("a different query must not hit")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Store(ctx, "domanda", docModel.SearchResult{ChunkId: "chunk-1"}, nil)

	cache.now = func() time.Time { return base.Add(59 * time.Minute) }
	if _, found := cache.Lookup(ctx, "domanda"); !found {
		t.Error("entry expired before its TTL")
	}

	cache.now = func() time.Time { return base.Add(61 * time.Minute) }
	if _, found := cache.Lookup(ctx, "domanda"); found {
		t.Error("entry survived past its TTL")
	}
}

func TestMemoryCacheLookupPurgesAllExpired(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Store(ctx, "vecchia uno", docModel.SearchResult{ChunkId: "a"}, nil)
	cache.Store(ctx, "vecchia due", docModel.SearchResult{ChunkId: "b"}, nil)

	cache.now = func() time.Time { return base.Add(45 * time.Minute) }
	cache.Store(ctx, "recente", docModel.SearchResult{ChunkId: "c"}, nil)

	// one lookup for an unrelated key sweeps every expired entry
	cache.now = func() time.Time { return base.Add(61 * time.Minute) }
	if _, found := cache.Lookup(ctx, "mai vista"); found {
		t.Fatal("unexpected hit")
	}

	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if len(cache.entries) != 1 {
		t.Fatalf("purge left %d entries; want 1", len(cache.entries))
	}
	if _, ok := cache.entries["recente"]; !ok {
		t.Error("the fresh entry was purged")
	}
}

func TestMemoryCacheStoresEmbeddingCopy(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	vector := []float32{1, 2, 3}
	cache.Store(ctx, "domanda", docModel.SearchResult{ChunkId: "chunk-1"}, vector)
	vector[0] = 99

	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if got := cache.entries["domanda"].embedding[0]; got != 1 {
		t.Errorf("cached embedding[0] = %v; want the value at store time", got)
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Store(ctx, "domanda", docModel.SearchResult{ChunkId: "primo"}, nil)
	cache.Store(ctx, "DOMANDA ", docModel.SearchResult{ChunkId: "secondo"}, nil)

	got, found := cache.Lookup(ctx, "domanda")
	if !found || got.ChunkId != "secondo" {
		t.Errorf("got %+v found=%v; want the later entry", got, found)
	}
}

func TestRedisCacheRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := TestRedisCache(redisStore.NewTestStore(client), time.Hour)
	ctx := context.Background()

	cache.Store(ctx, " La Mia Domanda ", docModel.SearchResult{ChunkId: "chunk-r", Score: 0.8}, []float32{0.1, 0.2})

	got, found := cache.Lookup(ctx, "la mia domanda")
	if !found || got.ChunkId != "chunk-r" {
		t.Fatalf("got %+v found=%v; want a hit", got, found)
	}

	mr.FastForward(time.Hour + time.Minute)

	if _, found := cache.Lookup(ctx, "la mia domanda"); found {
		t.Error("entry survived past its TTL")
	}
}
