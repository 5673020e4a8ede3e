package explain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

const cacheKeyPrefix = "fraudgraph:explain:"

// Cache stores successful explanations.
type Cache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*Explanation, error)
	Set(ctx context.Context, key string, e *Explanation) error
}

// RedisCache keeps explanations in Redis with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache creates a cache on client. A zero ttl keeps entries until evicted.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) cacheKey(key string) string {
	return cacheKeyPrefix + key
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Explanation, error) {
	data, err := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get explanation: %w", err)
	}

	var e Explanation
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal explanation: %w", err)
	}
	return &e, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, e *Explanation) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal explanation: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store explanation: %w", err)
	}
	return nil
}

// CachedExplainer consults a cache before the wrapped Explainer. Cache
// failures are logged and fall through to a direct lookup; errors are
// never cached.
type CachedExplainer struct {
	next   Explainer
	cache  Cache
	logger logging.Logger
}

// NewCachedExplainer wraps next with cache.
func NewCachedExplainer(next Explainer, cache Cache, logger logging.Logger) *CachedExplainer {
	return &CachedExplainer{
		next:   next,
		cache:  cache,
		logger: logging.OrNop(logger).With(logging.Component("explain-cache")),
	}
}

// Explain implements Explainer.
func (c *CachedExplainer) Explain(ctx context.Context, key string) (*Explanation, error) {
	if hit, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", logging.String("key", key), logging.Error(err))
	} else if hit != nil {
		c.logger.Debug("cache hit", logging.String("key", key))
		return hit, nil
	}

	e, err := c.next.Explain(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, e); err != nil {
		c.logger.Warn("cache write failed", logging.String("key", key), logging.Error(err))
	}
	return e, nil
}
