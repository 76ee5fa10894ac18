package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/redis"
)

// RedisCache stores context as JSON under llm_context:<tenant>:<hash> with
// a Redis expiry. Reads re-check expires_at so clock skew between writers
// and Redis never serves stale context.
type RedisCache struct {
	client   *redis.Client
	hospital string
	now      func() time.Time
}

type redisPayload struct {
	ContextData map[string]any `json:"context_data"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// NewRedisCache creates a Redis-backed cache for one tenant
func NewRedisCache(client *redis.Client, hospitalID string, clock func() time.Time) *RedisCache {
	if clock == nil {
		clock = time.Now
	}
	return &RedisCache{client: client, hospital: hospitalID, now: clock}
}

func (c *RedisCache) key(promptHash string) string {
	return fmt.Sprintf("llm_context:%s:%s", c.hospital, promptHash)
}

func (c *RedisCache) Put(ctx context.Context, promptHash string, data map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if data == nil {
		data = map[string]any{}
	}

	now := c.now().UTC()
	jsonData, err := json.Marshal(redisPayload{ContextData: data, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	return c.client.SetWithExpiry(ctx, c.key(promptHash), string(jsonData), ttl)
}

func (c *RedisCache) Get(ctx context.Context, promptHash string) (map[string]any, bool, error) {
	val, err := c.client.Get(ctx, c.key(promptHash))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var payload redisPayload
	if err := json.Unmarshal([]byte(val), &payload); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached context: %w", err)
	}
	if !payload.ExpiresAt.After(c.now()) {
		return nil, false, nil
	}

	return payload.ContextData, true, nil
}
