// Package session 当前登录用户的状态，生命周期与一个客户端（一个 token jar）绑定
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/querycache"
	"snapgram/internal/pkg/querykeys"
)

// UserSource 查询当前用户，没有有效会话时返回 (nil, nil)
type UserSource interface {
	CurrentUser(ctx context.Context) (*client.User, error)
}

// Options 可选配置
type Options struct {
	Cache  querycache.Cache
	TTL    time.Duration
	Logger log.Logger
}

// Context 持有当前用户，CheckAuthUser 刷新它
type Context struct {
	source UserSource
	jar    client.TokenJar
	cache  querycache.Cache
	ttl    time.Duration
	logger log.Logger

	loading atomic.Int32

	mu   sync.RWMutex
	user *client.User
}

// New 创建 auth context
func New(source UserSource, jar client.TokenJar, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Context{
		source: source,
		jar:    jar,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "auth_context"),
	}
}

// CheckAuthUser 向 Kratos 确认当前 token 是否对应一个有效用户，并更新 User()
// 每次都查询后端；缓存只保存最近确认的用户资料，会话失效时删除。缓存读写失败不影响结果
func (c *Context) CheckAuthUser(ctx context.Context) (bool, error) {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	user, err := c.source.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	c.setUser(user)
	if user == nil {
		c.Invalidate(ctx)
		return false, nil
	}

	if key := c.cacheKey(); key != "" {
		if err := querycache.SetJSON(ctx, c.cache, key, *user, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "current user cache write failed", log.Err(err))
		}
	}
	return true, nil
}

// CachedUser 缓存中的用户资料，只用于展示，不代表会话仍然有效
func (c *Context) CachedUser(ctx context.Context) (*client.User, bool) {
	key := c.cacheKey()
	if key == "" {
		return nil, false
	}
	u, ok, err := querycache.GetJSON[client.User](ctx, c.cache, key)
	if err != nil {
		c.logger.WarnContext(ctx, "current user cache read failed", log.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &u, true
}

// Invalidate 删除当前 token 的缓存（登出或会话失效后调用）
func (c *Context) Invalidate(ctx context.Context) {
	key := c.cacheKey()
	if key == "" {
		return
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "current user cache delete failed", log.Err(err))
	}
}

// IsLoading 是否有 CheckAuthUser 正在进行
func (c *Context) IsLoading() bool { return c.loading.Load() > 0 }

// User 最近一次确认的用户，未登录时为 nil
func (c *Context) User() *client.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// IsAuthenticated 最近一次确认是否已登录
func (c *Context) IsAuthenticated() bool { return c.User() != nil }

// Reset 清空用户状态（不影响 token）
func (c *Context) Reset() { c.setUser(nil) }

func (c *Context) setUser(u *client.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Context) cacheKey() string {
	if c.cache == nil || c.jar == nil {
		return ""
	}
	token := c.jar.Token()
	if token == "" {
		return ""
	}
	return querykeys.Key(querykeys.GetCurrentUser, querycache.HashToken(token))
}
