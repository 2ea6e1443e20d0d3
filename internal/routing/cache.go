package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carpool-matching/internal/models"
)

func cacheKey(q models.RoutingQuery) string {
	return fmt.Sprintf("routeleg:%.5f,%.5f|%.5f,%.5f|%s",
		q.Origin.Lat, q.Origin.Lon, q.Destination.Lat, q.Destination.Lon, q.Mode)
}

// RedisCache stores resolved legs in Redis with a TTL so concurrent runs
// and recomputations share provider answers.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, bool) {
	val, err := r.client.Get(ctx, cacheKey(q)).Result()
	if err != nil {
		return models.RoutingResult{}, false
	}
	var res models.RoutingResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return models.RoutingResult{}, false
	}
	return res, true
}

func (r *RedisCache) Set(ctx context.Context, q models.RoutingQuery, res models.RoutingResult) {
	if res.Approximate {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	// best-effort; a failed write only costs a provider call later
	_ = r.client.Set(ctx, cacheKey(q), b, r.ttl).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error { return r.client.Close() }

// MemoryCache is a process-local cache used in tests and when Redis is not
// configured.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	ttl   time.Duration
}

type memoryEntry struct {
	res models.RoutingResult
	ts  time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]memoryEntry), ttl: ttl}
}

func (c *MemoryCache) Get(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, bool) {
	k := cacheKey(q)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return models.RoutingResult{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return models.RoutingResult{}, false
	}
	return e.res, true
}

func (c *MemoryCache) Set(ctx context.Context, q models.RoutingQuery, res models.RoutingResult) {
	if res.Approximate {
		return
	}
	c.mu.Lock()
	c.store[cacheKey(q)] = memoryEntry{res: res, ts: time.Now()}
	c.mu.Unlock()
}
