package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and reports
// {allowed, current_count, limit, retry_after}. The first hit in a window
// sets its expiry.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
local window = tonumber(ARGV[2])
if current == 1 then
  redis.call('EXPIRE', KEYS[1], window)
end
local limit = tonumber(ARGV[1])
if current > limit then
  local ttl = redis.call('TTL', KEYS[1])
  if ttl < 0 then
    redis.call('EXPIRE', KEYS[1], window)
    ttl = window
  end
  return {0, current, limit, ttl}
end
return {1, current, limit, 0}
`

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// RateLimiter provides per-tenant fixed window limits using Redis + Lua
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(fixedWindowScript),
		logger: logger,
	}
}

// TenantKey is the counter key for one tenant's requests
func TenantKey(hospitalID string) string {
	return fmt.Sprintf("rate_limit:tenant:%s", hospitalID)
}

// CheckTenantLimit counts one request for the tenant and reports whether
// it fits within limit per windowSec.
func (r *RateLimiter) CheckTenantLimit(ctx context.Context, hospitalID string, limit int64, windowSec int) (*RateLimitResult, error) {
	return r.checkLimit(ctx, TenantKey(hospitalID), limit, windowSec)
}

// checkLimit executes the rate limit Lua script
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*RateLimitResult, error) {
	// Run Lua script atomically
	result, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Int64Slice()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 4 {
		return nil, fmt.Errorf("unexpected script result format: %v", result)
	}

	rateLimitResult := &RateLimitResult{
		Allowed:           result[0] == 1,
		CurrentCount:      result[1],
		Limit:             result[2],
		RetryAfterSeconds: result[3],
	}

	if !rateLimitResult.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", rateLimitResult.CurrentCount,
			"limit", limit,
			"retry_after", rateLimitResult.RetryAfterSeconds)
	}

	return rateLimitResult, nil
}

// GetCurrentCount returns current count without incrementing (for monitoring)
func (r *RateLimiter) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil // Key doesn't exist = no requests yet
	}
	return count, err
}

// ResetLimit clears a rate limit counter (for testing/admin)
func (r *RateLimiter) ResetLimit(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}
