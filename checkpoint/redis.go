package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mealmind/router"
)

// RedisStore implements Store on Redis with a TTL, so abandoned threads age
// out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(threadID string) string {
	return "mealmind:checkpoint:" + threadID
}

func (r *RedisStore) Save(ctx context.Context, threadID string, state *router.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(threadID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set checkpoint in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, threadID string) (*router.ConversationState, bool, error) {
	data, err := r.client.Get(ctx, redisKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get checkpoint from redis: %w", err)
	}
	var state router.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, true, nil
}
