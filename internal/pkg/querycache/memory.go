package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/xerrors"
)

const backendMemory = "memory"

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache 线程安全的进程内 TTL 缓存，过期条目在读取时或由定时任务清理
type MemoryCache struct {
	metrics *metrics.CacheMetrics
	logger  log.Logger
	clock   func() time.Time

	mu    sync.RWMutex
	store map[string]*entry

	cron *cron.Cron
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(m *metrics.CacheMetrics, logger log.Logger) *MemoryCache {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &MemoryCache{
		metrics: m,
		logger:  logger.With("component", "query_cache", "backend", backendMemory),
		clock:   time.Now,
		store:   make(map[string]*entry),
	}
}

// Get 实现 Cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		c.metrics.IncMiss(backendMemory, queryLabel(key))
		return nil, false, nil
	}

	if c.clock().After(e.expiresAt) {
		c.mu.Lock()
		// 期间可能已被重新写入
		if cur, ok := c.store[key]; ok && cur == e {
			delete(c.store, key)
		}
		c.mu.Unlock()
		c.metrics.IncEvicted(backendMemory, "expired")
		c.metrics.IncMiss(backendMemory, queryLabel(key))
		c.logger.DebugContext(ctx, "query cache expired", log.String("key", key))
		return nil, false, nil
	}

	c.metrics.IncHit(backendMemory, queryLabel(key))
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set 实现 Cache
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return xerrors.New(xerrors.CodeInvalidParams, "ttl must be positive").WithMetadata("key", key)
	}
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	c.store[key] = &entry{value: v, expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete 实现 Cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	_, ok := c.store[key]
	delete(c.store, key)
	c.mu.Unlock()

	if ok {
		c.metrics.IncEvicted(backendMemory, "delete")
		c.logger.DebugContext(ctx, "query cache evicted", log.String("key", key))
	}
	return nil
}

// Len 当前条目数（含未清理的过期条目）
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Sweep 清理所有过期条目，返回清理数量
func (c *MemoryCache) Sweep() int {
	now := c.clock()
	removed := 0

	c.mu.Lock()
	for k, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, k)
			removed++
		}
	}
	c.mu.Unlock()

	for i := 0; i < removed; i++ {
		c.metrics.IncEvicted(backendMemory, "sweep")
	}
	if removed > 0 {
		c.logger.Debug("query cache swept", log.Int("removed", removed))
	}
	return removed
}

// StartSweeper 按 cron 表达式（如 "@every 1m"）定期清理
func (c *MemoryCache) StartSweeper(spec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() { c.Sweep() }); err != nil {
		return xerrors.Wrap(err, xerrors.CodeInvalidParams, "invalid sweep schedule").
			WithMetadata("spec", spec)
	}
	sched.Start()
	c.cron = sched
	c.logger.Info("query cache sweeper started", log.String("spec", spec))
	return nil
}

// Close 停止清理任务，等待正在执行的清理结束
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.mu.Unlock()

	if sched != nil {
		<-sched.Stop().Done()
	}
	return nil
}
