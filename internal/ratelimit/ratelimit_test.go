package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, max, window), mr
}

func TestAllowUntilBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "alice", "203.0.113.9"); err != nil {
			t.Fatalf("attempt %d: expected allow, got %v", i+1, err)
		}
		if err := l.RecordFailure(ctx, "alice", "203.0.113.9"); err != nil {
			t.Fatalf("attempt %d: RecordFailure failed: %v", i+1, err)
		}
	}

	if err := l.Allow(ctx, "alice", "203.0.113.9"); !errors.Is(err, ErrLimited) {
		t.Errorf("expected ErrLimited after the budget is spent, got %v", err)
	}
}

func TestLimitIsPerIdentifier(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 2, time.Minute)

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "alice", "203.0.113.9"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	if err := l.Allow(ctx, "alice", "203.0.113.9"); !errors.Is(err, ErrLimited) {
		t.Errorf("expected alice to be limited, got %v", err)
	}
	if err := l.Allow(ctx, "bob", "198.51.100.7"); err != nil {
		t.Errorf("bob should not be limited, got %v", err)
	}
	// the IP shares alice's counter
	if err := l.Allow(ctx, "bob", "203.0.113.9"); !errors.Is(err, ErrLimited) {
		t.Errorf("expected alice's IP to be limited for bob too, got %v", err)
	}
}

func TestResetClearsCounters(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	if err := l.RecordFailure(ctx, "alice", "203.0.113.9"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := l.Allow(ctx, "alice", "203.0.113.9"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	if err := l.Reset(ctx, "alice", "203.0.113.9"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Allow(ctx, "alice", "203.0.113.9"); err != nil {
		t.Errorf("expected allow after reset, got %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)

	if err := l.RecordFailure(ctx, "alice", "203.0.113.9"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := l.Allow(ctx, "alice", "203.0.113.9"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.Allow(ctx, "alice", "203.0.113.9"); err != nil {
		t.Errorf("expected allow after the window expired, got %v", err)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	ctx := context.Background()
	var l *Limiter

	if err := l.Allow(ctx, "alice", "203.0.113.9"); err != nil {
		t.Errorf("nil limiter Allow returned %v", err)
	}
	if err := l.RecordFailure(ctx, "alice", "203.0.113.9"); err != nil {
		t.Errorf("nil limiter RecordFailure returned %v", err)
	}
	if err := l.Reset(ctx, "alice", "203.0.113.9"); err != nil {
		t.Errorf("nil limiter Reset returned %v", err)
	}
}
