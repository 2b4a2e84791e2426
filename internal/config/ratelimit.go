package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig controls the in-process sliding-window request limiter.
// Requests is the cap per key within Window.  KeyPrefixUser/KeyPrefixIP are
// prepended to the derived client key so authenticated and anonymous
// traffic never collide in the table.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Debug    bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:  envBool("RATE_LIMIT_ENABLED", true),
		Requests: envInt("RATE_LIMIT_REQUESTS", 60),
		Window:   envDur("RATE_LIMIT_WINDOW", time.Minute),
		Debug:    envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Requests < 1 {
		def.Requests = 1
	}
	if def.Window <= 0 {
		def.Window = time.Minute
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
