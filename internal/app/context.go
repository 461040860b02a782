package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/cache"
	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db"
)

// AppContext holds shared dependencies (DB, Redis, Logger, Config).
// RedisCache may be nil; callers fall back to single-replica behaviour.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Config     *config.Config
}

// New creates a new AppContext
func New(database *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, cfg *config.Config) *AppContext {
	if cfg == nil {
		cfg = config.Load("")
	}
	return &AppContext{
		DB:         database,
		RedisCache: rdb,
		Logger:     logger,
		Config:     cfg,
	}
}

// Close releases the store and the Redis client.
func (a *AppContext) Close() error {
	if a.RedisCache != nil {
		_ = a.RedisCache.Close()
	}
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
