package storage

import (
	"context"
	"fmt"

	"github.com/fustanlabs/fustan-sync/internal/common/config"

	"go.uber.org/zap"
)

// Type represents the type of persistent store.
type Type string

const (
	// TypeMemory represents the in-memory store
	TypeMemory Type = "memory"
	// TypeDisk represents the file-per-key disk store
	TypeDisk Type = "disk"
	// TypeRedis represents the Redis-backed store
	TypeRedis Type = "redis"
)

// NewStore creates a persistent store based on configuration.
func NewStore(ctx context.Context, logger *zap.Logger, cfg *config.StorageConfig) (Store, error) {
	logger.Info("Initializing persistent store", zap.String("type", cfg.Type))
	switch Type(cfg.Type) {
	case TypeMemory:
		return NewMemoryStore(logger), nil
	case TypeDisk:
		return NewDiskStore(logger, cfg.Dir)
	case TypeRedis:
		return NewRedisStore(ctx, logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
