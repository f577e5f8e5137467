package workflow

import (
	"context"
	"sync"
)

// Guard 提交锁。ok=false 表示相同 key 的提交正在进行
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// LocalGuard 进程内的提交锁
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard 创建 LocalGuard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

// Acquire 实现 Guard
func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}

// Held 当前持有的锁数量
func (g *LocalGuard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
