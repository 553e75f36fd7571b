package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"gpxvault/logger"
)

// GeocodeCache stores reverse-geocoding results in Redis. Place names are
// stable, so entries live long.
type GeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGeocodeCache creates the cache on top of an existing Redis client.
func NewGeocodeCache(client *redis.Client) *GeocodeCache {
	return &GeocodeCache{client: client, ttl: 30 * 24 * time.Hour}
}

func geocodeKey(key string) string {
	return "geocode:" + key
}

// Get returns a cached place name for a coordinate key.
func (c *GeocodeCache) Get(ctx context.Context, key string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, geocodeKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("geocode cache read failed", logger.ErrorField(err))
		}
		return "", false
	}
	return val, true
}

// Set stores a resolved place name. Failures are logged and ignored; the
// cache is an optimization, not a dependency.
func (c *GeocodeCache) Set(ctx context.Context, key, value string) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, geocodeKey(key), value, c.ttl).Err(); err != nil {
		logger.Warn("geocode cache write failed", logger.ErrorField(err))
	}
}
