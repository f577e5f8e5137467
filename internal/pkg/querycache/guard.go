package querycache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/xerrors"
)

// GuardPrefix 提交锁 key 前缀
const GuardPrefix = "snapgram:inflight:"

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard 跨实例的提交锁（SET NX PX），ttl 兜底防止进程崩溃后锁不释放
type RedisGuard struct {
	rdb    redisGuardClient
	ttl    time.Duration
	logger log.Logger
}

// redisGuardClient 同时需要 SetNX 和脚本能力
type redisGuardClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// NewRedisGuard 创建提交锁
func NewRedisGuard(rdb redisGuardClient, ttl time.Duration, logger log.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, logger: logger.With("component", "submission_guard")}
}

// Acquire 尝试获取 key 的锁，ok=false 表示已有同 key 的提交在进行
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	full := GuardPrefix + key

	ok, err := g.rdb.SetNX(ctx, full, token, g.ttl).Result()
	if err != nil {
		return nil, false, xerrors.NewCacheError("SETNX", err).WithMetadata("key", full)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 请求 ctx 可能已取消，释放使用独立的超时
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.rdb, []string{full}, token).Err(); err != nil {
			// 锁会保留到 ttl 过期
			g.logger.WarnContext(ctx, "redis guard release failed",
				log.String("key", full), log.Any("ttl", g.ttl.String()), log.Err(err))
		}
	}
	return release, true, nil
}
