package cache

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewUsageCache),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when no Redis address is configured; consumers
// treat nil as "run single-node".
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func NewUsageCache(client *redis.Client, clk clock.Clock, logger *zap.Logger) UsageCache {
	if client != nil {
		logger.Info("usage cache backed by redis")
		return NewRedisCache(client)
	}
	logger.Info("usage cache in-memory, single node")
	return NewMemoryCache(clk)
}
