package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit scopes
const (
	RateScopeBooking = "booking" // reservation submissions
	RateScopeQuery   = "query"   // availability and pricing lookups
)

// RateLimitRule allows Requests per Window
type RateLimitRule struct {
	Requests int
	Window   time.Duration
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter bounds requests per client identity within a window.
// Scopes without a rule are always allowed.
type RateLimiter interface {
	Allow(ctx context.Context, scope, identity string) (Decision, error)
}

// RedisRateLimiter is a fixed-window counter shared by every instance using
// the same Redis.
type RedisRateLimiter struct {
	client *redis.Client
	rules  map[string]RateLimitRule
	now    func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter
func NewRedisRateLimiter(client *redis.Client, rules map[string]RateLimitRule) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		rules:  rules,
		now:    time.Now,
	}
}

// Allow counts the hit and reports whether it fits in the current window
func (l *RedisRateLimiter) Allow(ctx context.Context, scope, identity string) (Decision, error) {
	rule, ok := l.rules[scope]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	windowStart := now.Truncate(rule.Window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, identity, windowStart.Unix())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rule.Window)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true, Limit: rule.Requests}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return decide(rule, int(incr.Val()), windowStart.Add(rule.Window).Sub(now)), nil
}

// decide turns a hit count (including the current hit) into a decision
func decide(rule RateLimitRule, count int, untilReset time.Duration) Decision {
	d := Decision{Allowed: count <= rule.Requests, Limit: rule.Requests, Remaining: rule.Requests - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		if untilReset < time.Second {
			untilReset = time.Second
		}
		d.RetryAfter = untilReset
	}
	return d
}

// RateLimitStore persists hits for the database limiter
type RateLimitStore interface {
	CountSince(ctx context.Context, scope, identifier string, windowStart time.Time) (int, time.Time, error)
	Record(ctx context.Context, scope, identifier string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DBRateLimiter counts hits in the rate_limits table. It is used when no Redis
// is configured.
type DBRateLimiter struct {
	store RateLimitStore
	rules map[string]RateLimitRule
	now   func() time.Time
}

// NewDBRateLimiter creates a database-backed limiter
func NewDBRateLimiter(store RateLimitStore, rules map[string]RateLimitRule) *DBRateLimiter {
	return &DBRateLimiter{
		store: store,
		rules: rules,
		now:   time.Now,
	}
}

// Allow checks the sliding window and records the hit when it is allowed
func (l *DBRateLimiter) Allow(ctx context.Context, scope, identity string) (Decision, error) {
	rule, ok := l.rules[scope]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	count, oldest, err := l.store.CountSince(ctx, scope, identity, now.Add(-rule.Window))
	if err != nil {
		return Decision{Allowed: true, Limit: rule.Requests}, fmt.Errorf("failed to check %s rate limit: %w", scope, err)
	}

	if count >= rule.Requests {
		return decide(rule, count+1, oldest.Add(rule.Window).Sub(now)), nil
	}

	if err := l.store.Record(ctx, scope, identity); err != nil {
		return Decision{Allowed: true, Limit: rule.Requests}, fmt.Errorf("failed to record %s request: %w", scope, err)
	}
	return decide(rule, count+1, 0), nil
}

// Cleanup removes hits older than the longest window
func (l *DBRateLimiter) Cleanup(ctx context.Context) (int64, error) {
	var maxWindow time.Duration
	for _, rule := range l.rules {
		if rule.Window > maxWindow {
			maxWindow = rule.Window
		}
	}
	return l.store.DeleteBefore(ctx, l.now().Add(-maxWindow))
}
