package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is empty")

// RedisSeenSet keeps the seen-set in a Redis set so several hosts can share it.
type RedisSeenSet struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSeenSet connects to addr and verifies the connection.
func NewRedisSeenSet(ctx context.Context, addr, key string) (*RedisSeenSet, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisSeenSetFromClient(client, key), nil
}

// NewRedisSeenSetFromClient uses an existing client.
func NewRedisSeenSetFromClient(client redis.UniversalClient, key string) *RedisSeenSet {
	if key == "" {
		key = "ideaminer:seen"
	}
	return &RedisSeenSet{client: client, key: key}
}

func (r *RedisSeenSet) LoadSeen(ctx context.Context) (types.IDSet, error) {
	ids, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load seen ids: %w", err)
	}
	return types.NewIDSet(ids...), nil
}

func (r *RedisSeenSet) MarkSeen(ctx context.Context, id string) error {
	if err := r.client.SAdd(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("mark %s seen: %w", id, err)
	}
	return nil
}

func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}
