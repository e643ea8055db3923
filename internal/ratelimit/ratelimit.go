// Package ratelimit throttles failed login attempts with fixed-window
// Redis counters, keyed per username and per client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "ratelimit:login:user:"
	ipKeyPrefix   = "ratelimit:login:ip:"
)

// ErrLimited is returned when an identifier has exhausted its attempt
// budget for the current window.
var ErrLimited = errors.New("ratelimit: too many attempts")

// Limiter enforces a login attempt budget. A nil *Limiter is disabled and
// allows everything, so callers need no separate "throttling off" path.
type Limiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// New creates a Limiter allowing maxAttempts failures per window.
func New(client *redis.Client, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{client: client, max: maxAttempts, window: window}
}

// Allow returns ErrLimited when the username or IP has already exhausted
// its budget. It does not consume an attempt.
func (l *Limiter) Allow(ctx context.Context, username, ip string) error {
	if l == nil {
		return nil
	}

	for _, key := range keys(username, ip) {
		n, err := l.client.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("ratelimit: redis get: %w", err)
		}
		if err == nil && n >= int64(l.max) {
			return ErrLimited
		}
	}
	return nil
}

// RecordFailure consumes one attempt for the username and IP. The window
// TTL starts with the first failure.
func (l *Limiter) RecordFailure(ctx context.Context, username, ip string) error {
	if l == nil {
		return nil
	}

	for _, key := range keys(username, ip) {
		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: redis incr: %w", err)
		}
		if count == 1 {
			if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
				return fmt.Errorf("ratelimit: redis expire: %w", err)
			}
		}
	}
	return nil
}

// Reset clears the counters for the username and IP. Called after a
// successful login.
func (l *Limiter) Reset(ctx context.Context, username, ip string) error {
	if l == nil {
		return nil
	}

	if err := l.client.Del(ctx, keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis del: %w", err)
	}
	return nil
}

func keys(username, ip string) []string {
	ks := []string{userKeyPrefix + username}
	if ip != "" {
		ks = append(ks, ipKeyPrefix+ip)
	}
	return ks
}
