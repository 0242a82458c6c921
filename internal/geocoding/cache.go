package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

const cachePrefix = "geocode:"

// Provider is implemented by Client and CachedProvider.
type Provider interface {
	Geocode(ctx context.Context, address string) (model.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error)
}

// Cache is the subset of redis.Cmdable used for result caching.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedProvider memoizes successful lookups. Cache failures are logged and
// never fail the lookup itself.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

func (p *CachedProvider) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	key := cachePrefix + "fwd:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
	return p.cached(ctx, key, func() (model.GeocodeResult, error) {
		return p.next.Geocode(ctx, address)
	})
}

func (p *CachedProvider) ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error) {
	key := fmt.Sprintf("%srev:%.6f,%.6f", cachePrefix, at.Lat, at.Lng)
	return p.cached(ctx, key, func() (model.GeocodeResult, error) {
		return p.next.ReverseGeocode(ctx, at)
	})
}

func (p *CachedProvider) cached(ctx context.Context, key string, load func() (model.GeocodeResult, error)) (model.GeocodeResult, error) {
	raw, err := p.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var hit model.GeocodeResult
		if jsonErr := json.Unmarshal(raw, &hit); jsonErr == nil {
			return hit, nil
		}
		slog.Warn("discarding corrupt geocode cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("geocode cache read failed", "key", key, "error", err)
	}

	result, err := load()
	if err != nil {
		return model.GeocodeResult{}, err
	}

	payload, err := json.Marshal(result)
	if err == nil {
		err = p.cache.SetEx(ctx, key, payload, p.ttl).Err()
	}
	if err != nil {
		slog.Warn("geocode cache write failed", "key", key, "error", err)
	}

	return result, nil
}
