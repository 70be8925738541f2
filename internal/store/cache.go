package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type MetadataCache interface {
	// Get returns the cached value for key, or nil when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisMetadataCache struct {
	client *redis.Client
}

func NewRedisMetadataCache(addr, password string) *RedisMetadataCache {
	return &RedisMetadataCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (s *RedisMetadataCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisMetadataCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
