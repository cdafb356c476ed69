// Package rate implements per-key fixed-window rate limiting for the OAuth
// endpoints, with Redis (multi-instance) and in-memory backends.
package rate

import (
	"context"
	"time"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
