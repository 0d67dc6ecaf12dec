package product

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListCache stores public catalog listings. Implementations fail open:
// a miss or a backend error just means the caller queries the repository.
type ListCache interface {
	// Get returns a cached listing. On a miss it returns the slot a fresh
	// listing belongs in; an empty slot means the result must not be stored.
	Get(ctx context.Context, q Query) (items []Product, slot string, ok bool)
	Set(ctx context.Context, slot string, items []Product)
	Invalidate(ctx context.Context)
}

const genKey = "catalog:gen"

// kv is the subset of *redis.Client the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisCache keys listings by a generation counter; Invalidate bumps the
// counter so stale keys are never read again and expire on their own.
// A listing is always written under the generation its lookup saw, so a
// listing read before an invalidation can't land in the new generation.
type RedisCache struct {
	rdb kv
	ttl time.Duration
	log *zap.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	return newRedisCache(rdb, ttl, log)
}

func newRedisCache(rdb kv, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisCache) key(ctx context.Context, q Query) (string, error) {
	gen, err := c.rdb.Get(ctx, genKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	params := url.Values{"q": {q.Q}, "c": {q.Category}}
	return "catalog:v" + strconv.FormatInt(gen, 10) + ":" + params.Encode(), nil
}

func (c *RedisCache) Get(ctx context.Context, q Query) ([]Product, string, bool) {
	key, err := c.key(ctx, q)
	if err != nil {
		c.log.Warn("catalog cache unavailable", zap.Error(err))
		return nil, "", false
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("catalog cache get", zap.Error(err))
		}
		return nil, key, false
	}
	var items []Product
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, key, false
	}
	return items, key, true
}

func (c *RedisCache) Set(ctx context.Context, slot string, items []Product) {
	if slot == "" {
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, slot, b, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache set", zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, genKey).Err(); err != nil {
		c.log.Warn("catalog cache invalidate", zap.Error(err))
	}
}
