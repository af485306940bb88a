package fuzzy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	pkgredis "github.com/clinsight/ade-signal-pipeline/pkg/redis"
	"github.com/clinsight/ade-signal-pipeline/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "fuzzy:"

// MatchCache memoises fuzzy-match results in Redis. Scoring a term against a
// large vocabulary is the most expensive step of the pipeline and clinical
// narratives repeat the same spans constantly, so repeated batches hit the
// cache far more often than they miss.
//
// Cache keys include the vocabulary fingerprint: results computed against an
// older reference never leak into a run against a newer one. A circuit
// breaker shields the pipeline from a broken Redis by degrading to direct
// computation.
type MatchCache struct {
	matcher *Matcher
	client  *pkgredis.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMatchCache wraps matcher with a Redis-backed memoisation layer.
func NewMatchCache(matcher *Matcher, client *pkgredis.Client, ttl time.Duration) *MatchCache {
	return &MatchCache{
		matcher: matcher,
		client:  client,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("fuzzy-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "fuzzy-cache"),
	}
}

// Match returns the memoised match for term against dict, computing and
// storing it on a miss. Concurrent lookups of the same term are collapsed to
// a single computation.
func (c *MatchCache) Match(ctx context.Context, term string, dict *reference.Dictionary, fingerprint, side string) Result {
	if term == "" || dict == nil || dict.Len() == 0 {
		return Result{}
	}
	key := c.buildKey(term, fingerprint, side)

	if result, ok := c.get(ctx, key); ok {
		c.hits.Add(1)
		return result
	}
	c.misses.Add(1)

	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.get(ctx, key); ok {
			return result, nil
		}
		result := c.matcher.Match(term, dict)
		c.set(ctx, key, result)
		return result, nil
	})
	return val.(Result)
}

// Stats returns cache hit and miss counts since creation.
func (c *MatchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Invalidate drops every memoised match. Fingerprinted keys already keep
// stale vocabularies from being served, so this is only needed to reclaim
// space after a reference swap.
func (c *MatchCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("flushing match cache: %w", err)
	}
	c.logger.Info("match cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *MatchCache) get(ctx context.Context, key string) (Result, bool) {
	var result Result
	found := false
	err := c.breaker.Execute(func() error {
		data, err := c.client.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Debug("cache lookup bypassed", "error", err)
		return Result{}, false
	}
	return result, found
}

func (c *MatchCache) set(ctx context.Context, key string, result Result) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Debug("cache store bypassed", "error", err)
	}
}

func (c *MatchCache) buildKey(term, fingerprint, side string) string {
	raw := fmt.Sprintf("%s:%s:%d:%s:%s", fingerprint, side, c.matcher.Threshold(), c.matcher.ScorerName(), term)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
