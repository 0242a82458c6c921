package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"go-parking-directory/pkg/apierror"
)

// WindowCounter increments the hit count of key inside the current window
// and returns the new count.
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter shares window counts between server instances.
type RedisCounter struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, now: time.Now}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	slot := c.now().UnixNano() / int64(window)
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.PExpire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment window counter: %w", err)
	}
	return incr.Val(), nil
}

type memoryWindow struct {
	slot  int64
	count int64
}

// MemoryCounter is the single-process fallback when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: map[string]*memoryWindow{}, now: time.Now}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	slot := c.now().UnixNano() / int64(window)

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || w.slot != slot {
		if len(c.windows) >= maxTrackedClient {
			for k, stale := range c.windows {
				if stale.slot != slot {
					delete(c.windows, k)
				}
			}
		}
		w = &memoryWindow{slot: slot}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// FixedWindow caps requests per path at limit per window. Counter failures
// let the request through.
func FixedWindow(counter WindowCounter, limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Second
	}

	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, err := counter.Increment(r.Context(), r.URL.Path, window)
			if err != nil {
				slog.Warn("fixed window counter unavailable", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				retry := int((window + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeAPIError(w, apierror.New(apierror.CodeRateLimited, "too many requests", "", http.StatusTooManyRequests))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
