package cache

import (
	"context"
	"errors"
	"fmt"

	"route-invoice-service/internal/platform/obs"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "blob:"

// RedisBlobStore keeps each namespace under one Redis string key.
type RedisBlobStore struct {
	client *redis.Client
}

func NewRedisBlobStore(client *redis.Client) *RedisBlobStore {
	return &RedisBlobStore{client: client}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return client, nil
}

func (r *RedisBlobStore) Load(ctx context.Context, namespace string) (_ []byte, err error) {
	defer obs.Time(ctx, "blob.redis.Load")(&err)

	b, err := r.client.Get(ctx, redisKeyPrefix+namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %q: %w", namespace, err)
	}
	return b, nil
}

func (r *RedisBlobStore) Save(ctx context.Context, namespace string, payload []byte) (err error) {
	defer obs.Time(ctx, "blob.redis.Save")(&err)

	if err := r.client.Set(ctx, redisKeyPrefix+namespace, payload, 0).Err(); err != nil {
		return fmt.Errorf("save blob %q: %w", namespace, err)
	}
	return nil
}

func (r *RedisBlobStore) Delete(ctx context.Context, namespace string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+namespace).Err(); err != nil {
		return fmt.Errorf("delete blob %q: %w", namespace, err)
	}
	return nil
}
