package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaradSinghal/EchoV3/internal/config"
)

func TestAllowWithinLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3, time.Minute).WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:a"))
	assert.False(t, l.Allow("user:a"), "fourth request inside the window must be rejected")
}

func TestAllowKeysAreIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, time.Minute).WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("user:a"))
	assert.False(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:b"), "one saturated key must not affect others")
	assert.True(t, l.Allow("ip:10.0.0.1"))
}

func TestAllowSlidesWithTime(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute).WithClock(func() time.Time { return current })

	require.True(t, l.Allow("k"))
	current = current.Add(30 * time.Second)
	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	// 61s after the first hit: it slid out of the window, one slot frees up.
	current = current.Add(31 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestRejectedRequestsDoNotExtendWindow(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, time.Minute).WithClock(func() time.Time { return current })

	require.True(t, l.Allow("k"))
	// Hammering while blocked must not push the reset point further out.
	for i := 0; i < 10; i++ {
		current = current.Add(5 * time.Second)
		require.False(t, l.Allow("k"))
	}
	current = current.Add(15 * time.Second) // 65s past the admitted hit
	assert.True(t, l.Allow("k"))
}

func rateLimitedEcho(cfg config.RateLimitConfig, l *RateLimiter) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(cfg, l))
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "pong"})
	})
	return e
}

func TestRateLimitMiddlewareBlocksByIP(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}
	l := NewRateLimiter(cfg.Requests, cfg.Window).WithClock(func() time.Time { return now })
	e := rateLimitedEcho(cfg, l)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too_many_requests")
}

func TestRateLimitMiddlewarePrefersUserKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}
	l := NewRateLimiter(cfg.Requests, cfg.Window).WithClock(func() time.Time { return now })

	e := echo.New()
	// Simulate the auth gate having identified two different users behind
	// the same egress address.
	user := "u1"
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextUserID, user)
			return next(c)
		}
	})
	e.Use(RateLimit(cfg, l))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	do := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do())
	require.Equal(t, http.StatusTooManyRequests, do())
	user = "u2"
	assert.Equal(t, http.StatusOK, do(), "a different user on the same address gets a fresh budget")
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: false, Requests: 1, Window: time.Minute}
	e := rateLimitedEcho(cfg, NewRateLimiter(1, time.Minute))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
