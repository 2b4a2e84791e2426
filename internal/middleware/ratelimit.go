package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/config"
)

// RateLimiter is a sliding-window request counter keyed by client
// identity.  Each key holds the timestamps of its requests within the
// trailing window; Allow prunes stale entries, rejects when the cap is
// reached and records the hit otherwise.  The table lives in process
// memory and is not durable across restarts.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter admitting at most limit requests per key
// within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the limiter clock.  Tests only.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

// Allow reports whether a request for key may proceed.  The check and the
// recording happen under one lock so two concurrent requests can never
// both take the last slot.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := pruneBefore(l.hits[key], cutoff)
	if len(kept) >= l.limit {
		// Rejected requests are not recorded; they do not extend the window.
		l.hits[key] = kept
		l.maybeSweep(now, cutoff)
		return false
	}
	l.hits[key] = append(kept, now)
	l.maybeSweep(now, cutoff)
	return true
}

// maybeSweep drops keys whose histories emptied out, at most once per
// window, to keep the table bounded by recently seen keys.  Caller holds
// the lock.
func (l *RateLimiter) maybeSweep(now time.Time, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, ts := range l.hits {
		if kept := pruneBefore(ts, cutoff); len(kept) == 0 {
			delete(l.hits, k)
		} else {
			l.hits[k] = kept
		}
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	// Timestamps are appended in order, so find the first one still inside
	// the window and keep the tail.
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// RateLimit returns an Echo middleware enforcing the limiter.  The client
// key prefers the authenticated subject (the auth gate runs first in the
// chain) and falls back to the caller's network address, so shared egress
// addresses do not throttle authenticated users collectively.
func RateLimit(cfg config.RateLimitConfig, l *RateLimiter) echo.MiddlewareFunc {
	if !cfg.Enabled || l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "user:" + CurrentUserID(c)
			if key == "user:" {
				ip := c.RealIP()
				if ip == "" {
					ip = "unknown"
				}
				key = "ip:" + ip
			}
			if !l.Allow(key) {
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block key=%s", key)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":   "too_many_requests",
					"message": "rate limit exceeded, retry later",
				})
			}
			return next(c)
		}
	}
}
