package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/fustanlabs/fustan-sync/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store using Redis, for fleets of agents sharing one
// credential set.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	cfg    config.StorageRedisConfig
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(ctx context.Context, logger *zap.Logger, cfg config.StorageRedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fustan"
	}

	return &RedisStore{
		logger: logger.Named("storage.redis"),
		client: client,
		prefix: prefix + ":",
		cfg:    cfg,
	}, nil
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return v, nil
}

// Set implements Store.Set
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, s.cfg.TTL).Err()
}

// Delete implements Store.Delete
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
