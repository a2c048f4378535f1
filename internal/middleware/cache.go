package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/popcorn-palace/internal/config"
)

// bodyRecorder tees the response body into buf, up to limit bytes.
type bodyRecorder struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cachedResponse is what gets stored under a cache key.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// cacheStore is the subset of *redis.Client the cache middleware uses.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// cacheKey derives the key from the generation and the concrete request path
// and query, so /showtimes/1 and /showtimes/2 never share an entry.
func cacheKey(prefix, gen string, r *http.Request) string {
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", prefix, gen, sum[:])
}

// generationKey holds a counter bumped by every invalidation. It sits outside
// the prefix:* pattern so purge never resets it.
func generationKey(prefix string) string { return prefix + "-gen" }

func generation(ctx context.Context, store cacheStore, prefix string) (string, error) {
	gen, err := store.Get(ctx, generationKey(prefix)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewRedisCache serves repeated GET requests from Redis. Only 200 responses
// that fit within MaxBodyBytes are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return redisCache(cfg, rdb)
}

// redisCache stores a response under the generation read before the handler
// ran. A response rendered across an invalidation lands under a generation
// nobody reads anymore and expires with its TTL.
func redisCache(cfg config.CacheConfig, store cacheStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			gen, err := generation(req.Context(), store, cfg.Prefix)
			if err != nil {
				slog.Warn("cache generation lookup failed", "error", err)
				return next(c)
			}
			key := cacheKey(cfg.Prefix, gen, req)

			if raw, err := store.Get(req.Context(), key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(raw, &cr) == nil {
					h := c.Response().Header()
					for k, vals := range cr.Header {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					return c.Blob(cr.Status, h.Get(echo.HeaderContentType), cr.Body)
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.truncated {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
			if err != nil {
				return nil
			}
			if err := store.Set(context.WithoutCancel(req.Context()), key, payload, cfg.TTL).Err(); err != nil {
				slog.Warn("cache store failed", "path", req.URL.Path, "error", err)
			}
			return nil
		}
	}
}

// InvalidateCache drops every cached response after a successful write, so
// readers never see a deleted movie or showtime beyond the current request.
func InvalidateCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return invalidateCache(cfg, rdb)
}

func invalidateCache(cfg config.CacheConfig, store cacheStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if s := c.Response().Status; s < 200 || s >= 300 {
				return nil
			}
			ctx := context.WithoutCancel(c.Request().Context())
			if err := store.Incr(ctx, generationKey(cfg.Prefix)).Err(); err != nil {
				slog.Warn("cache generation bump failed", "prefix", cfg.Prefix, "error", err)
			}
			if err := purge(ctx, store, cfg.Prefix); err != nil {
				slog.Warn("cache invalidation failed", "prefix", cfg.Prefix, "error", err)
			}
			return nil
		}
	}
}

// purge deletes all keys under prefix, SCANning in batches of 100.
func purge(ctx context.Context, rdb cacheStore, prefix string) error {
	iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return rdb.Del(ctx, keys...).Err()
	}
	return nil
}
