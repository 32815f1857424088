package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/metrics"
)

// Cache is a read-through, write-invalidate accelerator over redis.
// It is never the source of truth: every error is swallowed and
// reported as a miss, so the system stays correct with redis down or
// with no redis client at all (disabled mode).
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// New connects to redis. A ping failure is fatal at boot; runtime
// failures degrade to misses.
func New(opts Options) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	log.Info().Str("addr", opts.Addr).Msg("redis connected")
	return &Cache{rdb: rdb, prefix: opts.Prefix, ttl: opts.TTL}, nil
}

// NewDisabled returns a cache that always misses. Used when redis is
// not configured and in tests that assert cache transparency.
func NewDisabled(prefix string) *Cache {
	return &Cache{prefix: prefix}
}

// TTL is the default expiry for Set callers that don't need a custom one.
func (c *Cache) TTL() time.Duration {
	if c.ttl <= 0 {
		return 5 * time.Minute
	}
	return c.ttl
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.CacheMisses.Inc()
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		metrics.CacheMisses.Inc()
		return "", false
	}
	metrics.CacheHits.Inc()
	return val, true
}

// GetJSON unmarshals a cached snapshot into v. A decode failure is a
// miss; the stale entry is dropped.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable, dropping")
		c.Delete(ctx, key)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	c.Set(ctx, key, string(data), ttl)
}

// Delete removes keys. Must be called on every write path for every
// key whose cached value is a function of the data just written.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// DeletePattern removes every key matching a glob pattern via SCAN,
// for the bulk cases (all sessions, all profiles of a user).
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
		return
	}
	c.Delete(ctx, keys...)
}

func (c *Cache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
