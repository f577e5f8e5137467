package notify

import (
	"context"
	"sync"
	"time"
)

// connState *nats.Conn 满足此接口
type connState interface {
	IsConnected() bool
	IsClosed() bool
}

// HealthChecker NATS 连接健康检查器
type HealthChecker struct {
	conn     connState
	interval time.Duration

	mu        sync.RWMutex
	isHealthy bool
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(conn connState, checkInterval time.Duration) *HealthChecker {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second
	}
	hc := &HealthChecker{conn: conn, interval: checkInterval}
	hc.check()
	return hc
}

// Start 启动健康检查，ctx 取消后返回
func (hc *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.check()
		}
	}
}

// IsHealthy 连接是否健康
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

func (hc *HealthChecker) check() {
	healthy := hc.conn != nil && hc.conn.IsConnected() && !hc.conn.IsClosed()

	hc.mu.Lock()
	hc.isHealthy = healthy
	hc.mu.Unlock()
}
