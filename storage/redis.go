package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL expires stored blobs. Zero keeps them.
	TTL time.Duration
}

// RedisStore keeps blobs as Redis strings. It suits template and font
// caching more than durable output.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	addr   string
	db     int
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, addr: cfg.Addr, db: cfg.DB}
}

func (s *RedisStore) redisKey(key string) (string, error) {
	key, err := cleanKey("", key)
	if err != nil {
		return "", err
	}
	return s.prefix + "blob:" + key, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	rk, err := s.redisKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, rk).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte, _ string) (Reference, error) {
	rk, err := s.redisKey(key)
	if err != nil {
		return Reference{}, err
	}
	if err := s.client.Set(ctx, rk, data, s.ttl).Err(); err != nil {
		return Reference{}, fmt.Errorf("failed to set %s: %w", key, err)
	}
	return Reference{Key: key, URL: fmt.Sprintf("redis://%s/%d/%s", s.addr, s.db, rk)}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
