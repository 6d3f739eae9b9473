package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/redis/go-redis/v9"
)

// Cache stores finished states by key.
type Cache interface {
	Get(ctx context.Context, key string) (*State, bool, error)
	Set(ctx context.Context, key string, st *State, ttl time.Duration) error
}

const cachePrefix = "insighto:run:"

// CacheKey hashes the dataset fingerprint, the template and the options that
// change output.
func CacheKey(ds *dataset.Dataset, tpl *template.Template, opt Options) string {
	tb, _ := json.Marshal(tpl)
	ob, _ := json.Marshal(struct {
		Params          any
		CorrThreshold   float64
		TopCorrelations int
		TopDrivers      int
		TopCategories   int
		AnomalyZ        float64
		AnomalyMethod   string
		SkipInsights    bool
	}{
		opt.Params, opt.Insight.CorrThreshold, opt.Insight.TopCorrelations, opt.Insight.TopDrivers,
		opt.Insight.TopCategories, opt.Insight.AnomalyZ, opt.Insight.AnomalyMethod, opt.SkipInsights,
	})
	h := sha256.New()
	h.Write([]byte(ds.Fingerprint()))
	h.Write([]byte{0})
	h.Write([]byte(tpl.Name))
	h.Write([]byte{0})
	h.Write(tb)
	h.Write([]byte{0})
	h.Write(ob)
	return cachePrefix + hex.EncodeToString(h.Sum(nil))
}

// RedisCache keeps states as JSON strings in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr, which may be host:port or a redis:// URL, and pings it.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache { return &RedisCache{client: client} }

// Get returns the cached state for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (*State, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("decode cached state: %w", err)
	}
	return &st, true, nil
}

// Set stores st under key. A zero ttl keeps it until evicted.
func (c *RedisCache) Set(ctx context.Context, key string, st *State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }
