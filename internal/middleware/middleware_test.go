package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/popcorn-palace/internal/config"
)

func TestCacheKeyUsesConcretePath(t *testing.T) {
	a := cacheKey("cache", "0", httptest.NewRequest(http.MethodGet, "/showtimes/1", nil))
	b := cacheKey("cache", "0", httptest.NewRequest(http.MethodGet, "/showtimes/2", nil))
	again := cacheKey("cache", "0", httptest.NewRequest(http.MethodGet, "/showtimes/1", nil))
	next := cacheKey("cache", "1", httptest.NewRequest(http.MethodGet, "/showtimes/1", nil))

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
	assert.NotEqual(t, a, next)
	assert.Regexp(t, `^cache:0:[0-9a-f]{40}$`, a)
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/movies/all", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		NewRateLimiter(config.RateLimitConfig{Enabled: false}, nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies/all", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestParseBucketResult(t *testing.T) {
	res, err := parseBucketResult([]any{int64(1), int64(4), int64(0)})
	require.NoError(t, err)
	assert.True(t, res.allowed)
	assert.EqualValues(t, 4, res.remaining)

	res, err = parseBucketResult([]any{int64(0), "0", int64(1500)})
	require.NoError(t, err)
	assert.False(t, res.allowed)
	assert.Equal(t, 1500*time.Millisecond, res.retry)

	_, err = parseBucketResult("nope")
	assert.Error(t, err)
	_, err = parseBucketResult([]any{int64(1), 2.5, int64(0)})
	assert.Error(t, err)
}

func TestMemoryLimiterWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewRateLimiter(cfg, nil))
	e.POST("/bookings", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	blocked := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "3600", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), `"errorType":"TOO_MANY_REQUESTS"`)

	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/showtimes/update/3", nil)
	req.RemoteAddr = "192.0.2.7:1000"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/showtimes/update/:id")

	assert.Equal(t, "rl:ip:192.0.2.7", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /showtimes/update/:id",
		rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
}
