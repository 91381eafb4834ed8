package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "talkboard:client:"

// Redis implements KV on top of a shared Redis instance, used by kiosk and
// shared-device deployments where client state must survive the process.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client. The connection is pinged so that wiring
// mistakes surface at construction time rather than on first use.
func NewRedis(ctx context.Context, client *redis.Client) (*Redis, error) {
	if client == nil {
		return nil, errors.New("storage: redis client is required")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("storage: redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}
