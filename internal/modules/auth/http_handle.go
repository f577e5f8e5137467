package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"snapgram/internal/pkg/notify"
)

const (
	statusOK       = "ok"
	statusDown     = "down"
	statusDisabled = "disabled"
)

// HealthHandler 依赖组件的健康检查，未配置的组件记为 disabled
type HealthHandler struct {
	redis redis.Cmdable
	nats  *notify.HealthChecker
}

func (h *HealthHandler) Health(c echo.Context) error {
	services := map[string]string{
		"redis": h.checkRedis(c.Request().Context()),
		"nats":  h.checkNATS(),
	}

	status, code := statusOK, http.StatusOK
	for _, s := range services {
		if s == statusDown {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, map[string]any{
		"status":    status,
		"timestamp": time.Now(),
		"services":  services,
	})
}

func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return statusDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return statusDown
	}
	return statusOK
}

func (h *HealthHandler) checkNATS() string {
	if h.nats == nil {
		return statusDisabled
	}
	if !h.nats.IsHealthy() {
		return statusDown
	}
	return statusOK
}
