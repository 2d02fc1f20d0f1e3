package geo

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/watchfi/storefront/pkg/logger"
)

// Provider is the geography capability the billing form consumes.
type Provider interface {
	Countries(ctx context.Context) ([]Country, error)
	Cities(ctx context.Context, isoCode string) ([]City, error)
}

// Cache is the JSON cache the provider reads through.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Cached wraps a Provider with a shared cache. Concurrent misses for the same
// key share one upstream call. Cache failures fall through to the upstream.
type Cached struct {
	upstream Provider
	cache    Cache
	ttl      time.Duration
	logg     *logger.Logger
	group    singleflight.Group
}

func NewCached(upstream Provider, cache Cache, ttl time.Duration, logg *logger.Logger) *Cached {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cached{upstream: upstream, cache: cache, ttl: ttl, logg: logg}
}

func (c *Cached) Countries(ctx context.Context) ([]Country, error) {
	return readThrough(ctx, c, c.key("geo", "countries"), func(ctx context.Context) ([]Country, error) {
		return c.upstream.Countries(ctx)
	})
}

func (c *Cached) Cities(ctx context.Context, isoCode string) ([]City, error) {
	iso := strings.ToUpper(strings.TrimSpace(isoCode))
	return readThrough(ctx, c, c.key("geo", "cities", iso), func(ctx context.Context) ([]City, error) {
		return c.upstream.Cities(ctx, iso)
	})
}

func (c *Cached) key(parts ...string) string {
	if c.cache == nil {
		return strings.Join(parts, ":")
	}
	return c.cache.CacheKey(parts...)
}

func readThrough[T any](ctx context.Context, c *Cached, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if c.cache != nil {
		var cached []T
		found, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "key", key), "geo.cache.read_failed")
		} else if found {
			return cached, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		items, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil && len(items) > 0 {
			if err := c.cache.SetJSON(ctx, key, items, c.ttl); err != nil {
				c.logg.Warn(c.logg.WithField(ctx, "key", key), "geo.cache.write_failed")
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}
