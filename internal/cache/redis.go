package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage shares the cache between API instances. Entries never expire;
// a Redis server running out of maxmemory reports quota exhaustion.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to redisURL and checks the connection.
func NewRedisStorage(redisURL string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStorage{client: client}, nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		if isOutOfMemory(err) {
			return fmt.Errorf("set %s: %w", key, ErrQuotaExceeded)
		}
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN.
func (s *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return keys, nil
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func isOutOfMemory(err error) bool {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return strings.HasPrefix(redisErr.Error(), "OOM")
	}
	return false
}
