package sessioncache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache backend on a shared redis instance, for deployments
// running more than one service replica.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
}

// NewRedis creates a redis backend. The client is expected to be
// configured and reachable; a ping failure surfaces on first use.
func NewRedis(client *redis.Client, defaultTTL time.Duration) *Redis {
	return &Redis{
		client:     client,
		defaultTTL: defaultTTL,
		keyPrefix:  "usersd:session:",
	}
}

func (r *Redis) Get(ctx context.Context, sid string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+sid).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, sid string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.keyPrefix+sid, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Drop(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, r.keyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
