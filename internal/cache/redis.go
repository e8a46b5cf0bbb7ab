package cache

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"scrumcore/pkg/domain"
)

// Redis is a Client backed by a Redis server, for deployments where multiple
// service processes share one facet cache.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps an existing go-redis client. The prefix namespaces keys so
// several environments can share one server.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "scrumcore"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// OpenRedisFromEnv constructs a Redis cache client from process environment.
//
//	SCRUMCORE_REDIS_ADDR: host:port (required)
//	SCRUMCORE_REDIS_PASSWORD: optional
//	SCRUMCORE_CACHE_PREFIX: key namespace (default scrumcore)
func OpenRedisFromEnv() (*Redis, error) {
	addr := os.Getenv("SCRUMCORE_REDIS_ADDR")
	if addr == "" {
		return nil, errors.New("SCRUMCORE_REDIS_ADDR required for redis cache")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("SCRUMCORE_REDIS_PASSWORD"),
	})
	return NewRedis(rdb, os.Getenv("SCRUMCORE_CACHE_PREFIX")), nil
}

func (r *Redis) key(entityID string, facet domain.Facet) string {
	return r.prefix + ":" + FacetKey(entityID, facet)
}

// Get fetches the facet value; a redis.Nil reply is a plain miss.
func (r *Redis) Get(ctx context.Context, entityID string, facet domain.Facet) (string, bool, error) {
	val, err := r.rdb.Get(ctx, r.key(entityID, facet)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Put stores the value with TTL expiry.
func (r *Redis) Put(ctx context.Context, entityID string, facet domain.Facet, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return r.rdb.Set(ctx, r.key(entityID, facet), value, ttl).Err()
}

// Invalidate deletes the listed facets for the entity.
func (r *Redis) Invalidate(ctx context.Context, entityID string, facets ...domain.Facet) error {
	keys := make([]string, 0, len(facets))
	for _, facet := range facets {
		keys = append(keys, r.key(entityID, facet))
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}
