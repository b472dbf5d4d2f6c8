// Package cache memoizes backtest evaluations in redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

// Config defines the redis connection and breaker settings
type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	TTL             time.Duration `mapstructure:"ttl"`
	Prefix          string        `mapstructure:"prefix"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// DefaultConfig returns a disabled cache pointing at a local redis
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:6379",
		TTL:             time.Hour,
		Prefix:          "varbt:eval:",
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// CacheStats tracks cache statistics
type CacheStats struct {
	Hits     int64
	Misses   int64
	Failures int64
}

// ResultCache stores evaluations keyed by exceedance series and
// confidence. Every redis call goes through a circuit breaker, so a
// failing redis is skipped until the breaker half-opens.
type ResultCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	prefix  string
	stats   CacheStats
}

// NewRedisClient opens a client for cfg
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewResultCache(client *redis.Client, cfg Config) *ResultCache {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	st := gobreaker.Settings{Name: "result-cache", Timeout: cfg.BreakerTimeout}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, redis.Nil) }

	return &ResultCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
	}
}

// Key derives the redis key from the breach pattern and confidence level
func (c *ResultCache) Key(e domain.ExceedanceSeries, confidence float64) string {
	h := sha256.New()

	bitmap := make([]byte, (e.Len()+7)/8)
	for i, breach := range e.Flags() {
		if breach {
			bitmap[i/8] |= 1 << (i % 8)
		}
	}
	h.Write([]byte(strconv.Itoa(e.Len())))
	h.Write([]byte{0})
	h.Write(bitmap)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(confidence, 'g', -1, 64)))

	return fmt.Sprintf("%s%x", c.prefix, h.Sum(nil))
}

// Get returns the cached evaluation. A miss is (nil, false, nil).
func (c *ResultCache) Get(ctx context.Context, e domain.ExceedanceSeries, confidence float64) (*domain.Evaluation, bool, error) {
	key := c.Key(e, confidence)

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Result()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&c.stats.Misses, 1)
			return nil, false, nil
		}
		atomic.AddInt64(&c.stats.Failures, 1)
		return nil, false, domain.NewCacheError("cache_get", err)
	}

	var eval domain.Evaluation
	if err := json.Unmarshal([]byte(v.(string)), &eval); err != nil {
		atomic.AddInt64(&c.stats.Failures, 1)
		return nil, false, domain.NewCacheError("cache_decode", err)
	}
	switch {
	case eval.Independence.Degenerate:
		eval.Independence.Advisory = domain.NewDegenerateClusterWarning(string(domain.TestChristoffersen), eval.Independence.Observations)
	case eval.Independence.Unavailable:
		eval.Independence.Advisory = domain.NewIndependenceUnavailableWarning("evaluate", eval.Independence.Observations)
	}

	atomic.AddInt64(&c.stats.Hits, 1)
	return &eval, true, nil
}

// Set stores eval with the configured TTL
func (c *ResultCache) Set(ctx context.Context, e domain.ExceedanceSeries, confidence float64, eval *domain.Evaluation) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return domain.NewCacheError("cache_encode", err)
	}

	key := c.Key(e, confidence)
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return c.client.Set(ctx, key, string(data), c.ttl).Result()
	})
	if err != nil {
		atomic.AddInt64(&c.stats.Failures, 1)
		return domain.NewCacheError("cache_set", err)
	}
	return nil
}

// Ping checks redis reachability
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// State reports the breaker state
func (c *ResultCache) State() string {
	return c.breaker.State().String()
}

// GetStats returns cache statistics
func (c *ResultCache) GetStats() CacheStats {
	return CacheStats{
		Hits:     atomic.LoadInt64(&c.stats.Hits),
		Misses:   atomic.LoadInt64(&c.stats.Misses),
		Failures: atomic.LoadInt64(&c.stats.Failures),
	}
}

// Close releases the redis connection
func (c *ResultCache) Close() error {
	return c.client.Close()
}
