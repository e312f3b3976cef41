// Package cache keeps the read-only catalogs in Redis so that opening a
// booking does not hit the catalog tables every time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/config"
	"github.com/iliyamo/theater-booking/internal/model"
)

// Source is the catalog reader being cached.
type Source interface {
	Theaters(ctx context.Context) ([]model.Theater, error)
	ServiceCategories(ctx context.Context) ([]model.ServiceCategory, error)
	Occasions(ctx context.Context) ([]model.OccasionDefinition, error)
	PricingDefaults(ctx context.Context) (model.PricingDefaults, error)
}

const (
	kindTheaters  = "theaters"
	kindServices  = "services"
	kindOccasions = "occasions"
	kindDefaults  = "pricing_defaults"
)

var kinds = []string{kindTheaters, kindServices, kindOccasions, kindDefaults}

// CatalogCache is a read-through cache in front of a Source.  Redis
// failures are logged and the Source is consulted instead.
type CatalogCache struct {
	src    Source
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    logrus.FieldLogger
}

// NewCatalogCache wraps src.  A nil rdb or a disabled config yields a cache
// that always reads through.
func NewCatalogCache(src Source, rdb redis.Cmdable, cfg config.CacheConfig, log logrus.FieldLogger) *CatalogCache {
	if !cfg.Enabled {
		rdb = nil
	}
	return &CatalogCache{src: src, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, log: log}
}

func (c *CatalogCache) key(kind string) string { return c.prefix + ":" + kind }

func (c *CatalogCache) Theaters(ctx context.Context) ([]model.Theater, error) {
	return load(ctx, c, kindTheaters, c.src.Theaters)
}

func (c *CatalogCache) ServiceCategories(ctx context.Context) ([]model.ServiceCategory, error) {
	return load(ctx, c, kindServices, c.src.ServiceCategories)
}

func (c *CatalogCache) Occasions(ctx context.Context) ([]model.OccasionDefinition, error) {
	return load(ctx, c, kindOccasions, c.src.Occasions)
}

func (c *CatalogCache) PricingDefaults(ctx context.Context) (model.PricingDefaults, error) {
	return load(ctx, c, kindDefaults, c.src.PricingDefaults)
}

// Invalidate drops every cached catalog.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = c.key(k)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func load[T any](ctx context.Context, c *CatalogCache, kind string, fetch func(context.Context) (T, error)) (T, error) {
	if c.rdb == nil {
		return fetch(ctx)
	}
	key := c.key(kind)
	log := c.log.WithField("key", key)

	body, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(body, &v); jerr == nil {
			return v, nil
		}
		log.Warn("discarding undecodable catalog cache entry")
	case errors.Is(err, redis.Nil):
	default:
		// Redis is unhealthy; don't try to write either.
		log.WithError(err).Warn("catalog cache read failed")
		return fetch(ctx)
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if body, err = json.Marshal(v); err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("catalog cache write failed")
	}
	return v, nil
}
