// Package cache stores match decisions in Redis so repeated runs over the
// same primary index skip scoring identical queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/linker"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/resilience"
)

const keyPrefix = "csvlink:match:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// MatchCache stops calling the store for a while after repeated failures, so
// an unreachable Redis costs a run its cache and nothing else.
type MatchCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

var _ linker.MatchCache = (*MatchCache)(nil)

func New(store Store, cfg config.RedisConfig) *MatchCache {
	return &MatchCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		breaker: resilience.NewBreaker("match-cache", resilience.BreakerConfig{}),
		logger:  slog.Default().With("component", "match-cache"),
	}
}

// Get looks up a decision. Store failures are logged and count as misses.
func (c *MatchCache) Get(ctx context.Context, key string) (linker.Decision, bool) {
	var data string
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.Get(ctx, keyPrefix+key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil && !errors.Is(err, resilience.ErrOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return linker.Decision{}, false
	}
	var d linker.Decision
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return linker.Decision{}, false
	}
	c.hits.Add(1)
	return d, true
}

func (c *MatchCache) Set(ctx context.Context, key string, d linker.Decision) {
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, keyPrefix+key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

type lookup struct {
	decision linker.Decision
	hit      bool
}

// GetOrCompute returns the cached decision for key, or runs compute once per
// key across concurrent callers and stores the result. The store is checked
// again inside the flight so a caller arriving just after a computation
// finished reads it instead of recomputing. Unmatched decisions are cached
// too.
func (c *MatchCache) GetOrCompute(ctx context.Context, key string, compute func() linker.Decision) (linker.Decision, bool) {
	if d, ok := c.Get(ctx, key); ok {
		return d, true
	}
	val, _, _ := c.group.Do(key, func() (any, error) {
		if d, ok := c.Get(ctx, key); ok {
			return lookup{decision: d, hit: true}, nil
		}
		d := compute()
		c.Set(ctx, key, d)
		return lookup{decision: d}, nil
	})
	l := val.(lookup)
	return l.decision, l.hit
}

// Invalidate deletes every cached decision.
func (c *MatchCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating match cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats reports store lookups, counting the outer and in-flight checks
// separately.
func (c *MatchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
