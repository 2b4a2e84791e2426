package webhook

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Deduper remembers webhook delivery IDs for a bounded retention window so
// provider redeliveries do not double-apply counter mutations.
type Deduper interface {
	// Seen marks id as processed and reports whether it had been seen
	// already.  Mark-and-check is a single operation so two concurrent
	// deliveries of the same id cannot both pass.
	Seen(ctx context.Context, id string) bool
}

// RedisDeduper stores delivery IDs in Redis with a TTL, surviving process
// restarts and shared across instances.
type RedisDeduper struct {
	Client *redis.Client
	TTL    time.Duration
}

func (d *RedisDeduper) Seen(ctx context.Context, id string) bool {
	ok, err := d.Client.SetNX(ctx, "webhook:delivery:"+id, 1, d.TTL).Result()
	if err != nil {
		// Redis being down must not drop deliveries; treat as unseen.
		return false
	}
	return !ok
}

// MemoryDeduper keeps delivery IDs in an in-process cache with expiry.
type MemoryDeduper struct{ c *gocache.Cache }

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{c: gocache.New(ttl, 2*ttl)}
}

func (d *MemoryDeduper) Seen(_ context.Context, id string) bool {
	// Add fails when the key already exists.
	return d.c.Add(id, struct{}{}, gocache.DefaultExpiration) != nil
}

// NewDeduper picks the Redis-backed deduper when a client is available and
// falls back to the in-process cache otherwise.
func NewDeduper(rdb *redis.Client, ttl time.Duration) Deduper {
	if rdb != nil {
		return &RedisDeduper{Client: rdb, TTL: ttl}
	}
	return NewMemoryDeduper(ttl)
}
