package querycache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/xerrors"
)

const backendRedis = "redis"

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient 创建 Redis 客户端并测试连接
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, xerrors.NewCacheError("ping", err).WithMetadata("addr", cfg.Addr)
	}
	return rdb, nil
}

// RedisCache 基于 go-redis 的缓存
type RedisCache struct {
	rdb     redis.Cmdable
	metrics *metrics.CacheMetrics
	logger  log.Logger
}

// NewRedisCache 创建 redis 缓存
func NewRedisCache(rdb redis.Cmdable, m *metrics.CacheMetrics, logger log.Logger) *RedisCache {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &RedisCache{
		rdb:     rdb,
		metrics: m,
		logger:  logger.With("component", "query_cache", "backend", backendRedis),
	}
}

// Get 实现 Cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.IncMiss(backendRedis, queryLabel(key))
		return nil, false, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "redis get failed", log.String("key", key), log.Err(err))
		return nil, false, xerrors.NewCacheError("GET", err).WithMetadata("key", key)
	}
	c.metrics.IncHit(backendRedis, queryLabel(key))
	return raw, true, nil
}

// Set 实现 Cache
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return xerrors.New(xerrors.CodeInvalidParams, "ttl must be positive").WithMetadata("key", key)
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis set failed", log.String("key", key), log.Err(err))
		return xerrors.NewCacheError("SET", err).WithMetadata("key", key)
	}
	return nil
}

// Delete 实现 Cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return xerrors.NewCacheError("DEL", err).WithMetadata("key", key)
	}
	if n > 0 {
		c.metrics.IncEvicted(backendRedis, "delete")
	}
	return nil
}
