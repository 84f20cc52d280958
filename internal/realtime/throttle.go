package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle suppresses repeats of the same notification key within a TTL,
// e.g. an insert followed by its update echo.
type Throttle interface {
	Allow(ctx context.Context, key string) bool
}

// RedisThrottle shares the dedupe window across server instances with
// SET NX PX.
type RedisThrottle struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisThrottle(rdb *redis.Client, prefix string, ttl time.Duration) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Allow fails open: a Redis error lets the notification through.
func (t *RedisThrottle) Allow(ctx context.Context, key string) bool {
	ok, err := t.rdb.SetNX(ctx, t.prefix+":dedupe:"+key, 1, t.ttl).Result()
	if err != nil {
		log.Printf("realtime: dedupe %s failed: %v", key, err)
		return true
	}
	return ok
}

// MemoryThrottle is the single-process version.
type MemoryThrottle struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryThrottle(ttl time.Duration) *MemoryThrottle {
	return &MemoryThrottle{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

func (t *MemoryThrottle) Allow(_ context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if until, ok := t.seen[key]; ok && now.Before(until) {
		return false
	}
	t.seen[key] = now.Add(t.ttl)
	if len(t.seen) > 1024 {
		for k, until := range t.seen {
			if !now.Before(until) {
				delete(t.seen, k)
			}
		}
	}
	return true
}
