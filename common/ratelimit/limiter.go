package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// RateLimiter provides fixed-window rate limiting over Redis
type RateLimiter struct {
	redis  *redis.Client
	logger Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		logger: logger,
	}
}

// CheckUploadLimit checks the per-client document upload limit
func (r *RateLimiter) CheckUploadLimit(ctx context.Context, clientIP string, limit int64, window time.Duration) (*Result, error) {
	key := fmt.Sprintf("rate_limit:upload:%s", clientIP)
	return r.checkLimit(ctx, key, limit, window)
}

// checkLimit increments the window counter and compares against the limit.
// The first hit in a window sets the expiry; the window boundary is fixed,
// not sliding.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, window time.Duration) (*Result, error) {
	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incr.Val()
	result := &Result{
		Allowed:      count <= limit,
		CurrentCount: count,
		Limit:        limit,
	}

	if !result.Allowed {
		retryAfter := ttl.Val()
		if retryAfter < 0 {
			retryAfter = window
		}
		result.RetryAfterSeconds = int64(retryAfter.Seconds())

		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", count,
			"limit", limit,
			"retry_after", result.RetryAfterSeconds)
	}

	return result, nil
}

// ResetLimit clears a rate limit counter (for testing/admin)
func (r *RateLimiter) ResetLimit(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}
