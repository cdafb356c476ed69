package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_EnforcesLimit(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "dwa:203.0.113.7")
		if err != nil {
			t.Fatalf("Allow err: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d denied under limit", i+1)
		}
	}

	res, err := l.Allow(ctx, "dwa:203.0.113.7")
	if err != nil {
		t.Fatalf("Allow err: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth hit allowed over limit of 3")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(1, time.Hour)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "dwa:a"); !res.Allowed {
		t.Fatal("first hit for key a denied")
	}
	if res, _ := l.Allow(ctx, "dwa:a"); res.Allowed {
		t.Fatal("second hit for key a allowed over limit")
	}
	if res, _ := l.Allow(ctx, "dwa:b"); !res.Allowed {
		t.Fatal("first hit for key b denied")
	}
}

func TestMemoryLimiter_RemainingCountsDown(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(2, time.Hour)
	ctx := context.Background()

	res, _ := l.Allow(ctx, "k")
	if res.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1", res.Remaining)
	}
	res, _ = l.Allow(ctx, "k")
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
}
