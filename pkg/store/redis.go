package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore is a session-scoped StateStore backed by Redis keys with
// a TTL, for deployments running more than one instance.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore connects to addr and verifies the connection.
func NewRedisStateStore(ctx context.Context, addr, password string, dbIndex int, ttl time.Duration) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           dbIndex,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStateStore{client: client, prefix: "exportmap:", ttl: ttl}, nil
}

func (r *RedisStateStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("Redis get failed", "key", key, "error", err)
		return "", false
	}
	return val, true
}

func (r *RedisStateStore) SetState(ctx context.Context, key, val string) error {
	return r.client.Set(ctx, r.key(key), val, r.ttl).Err()
}

func (r *RedisStateStore) DeleteState(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Ping checks connectivity for the health endpoint.
func (r *RedisStateStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStateStore) Close() error {
	return r.client.Close()
}
