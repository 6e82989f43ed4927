package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/adapters/cache"
	"github.com/rotz/email-predictor/internal/config"
	"github.com/rotz/email-predictor/internal/core"
)

// CacheFactory creates signal caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSignalCache creates a signal cache based on the configuration.
// A nil cache is a valid result: caching is optional, and an unreachable
// backend degrades feature extraction to always-miss rather than failing.
func (f *CacheFactory) CreateSignalCache() (core.SignalCache, error) {
	cacheCfg := f.cfg.GetCache()
	if !cacheCfg.Enabled {
		return nil, nil
	}

	switch cacheCfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cacheCfg.RedisAddr, f.logger)
		if err != nil {
			f.logger.Warn("Signal cache unavailable, continuing without it",
				zap.String("addr", cacheCfg.RedisAddr),
				zap.Error(err))
			return nil, nil
		}
		return redisCache, nil
	case "memory":
		cleanupFreq, err := f.cfg.GetDuration("cache.cleanup_frequency")
		if err != nil {
			return nil, fmt.Errorf("invalid cache cleanup frequency: %w", err)
		}
		return cache.NewMemoryCache(f.logger, cleanupFreq), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}
