// Package cache holds the order snapshot cache: a Redis key per order
// containing the last externally-visible JSON representation, written by the
// payment worker and consulted by the GET order path before hitting Postgres.
//
// Entries are never expired or invalidated, only overwritten wholesale, so a
// reader sees either the previous snapshot or the new one, never a torn write.
// The cache is a performance aid; Postgres stays the source of truth.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Set(ctx context.Context, key string, value []byte) error

	// Get returns nil with no error on a cache miss.
	Get(ctx context.Context, key string) ([]byte, error)
}

// OrderKey builds the cache key for an order snapshot.
func OrderKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	// TTL 0: snapshots live until the next payment attempt overwrites them.
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return val, nil
}
