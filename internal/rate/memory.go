package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: the same fixed-window algorithm on an in-process counter
// cache. Good enough for single-instance deployments without Redis.
type MemoryLimiter struct {
	counters *gocache.Cache
	Max      int64
	Window   time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counters: gocache.New(window, 2*window),
		Max:      int64(max),
		Window:   window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	winKey := fmt.Sprintf("%s:%d", key, winStart.Unix())

	// Add is a no-op when the counter exists, so the Increment below is the
	// only write that counts the hit.
	_ = l.counters.Add(winKey, int64(0), l.Window)
	hits, err := l.counters.IncrementInt64(winKey, 1)
	if err != nil {
		// Counter expired between Add and Increment; start a fresh window.
		l.counters.Set(winKey, int64(1), l.Window)
		hits = 1
	}

	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
	}
	if !allowed {
		res.RetryAfter = time.Until(winStart.Add(l.Window))
		if res.RetryAfter < 0 {
			res.RetryAfter = l.Window
		}
	}
	return res, nil
}
