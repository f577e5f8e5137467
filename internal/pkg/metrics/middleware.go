// File: internal/pkg/metrics/middleware.go
package metrics

import (
	"errors"
	"net/http"
	"time"

	"snapgram/internal/pkg/ctxkey"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware Echo 中间件：记录请求数、延迟和进行中的请求
func Middleware(m *HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := ctxkey.WithValue(c.Request().Context(), ctxkey.HTTPMethod, c.Request().Method)
			c.SetRequest(c.Request().WithContext(ctx))

			service := GetServiceName()
			m.IncInProgress(service)
			defer m.DecInProgress(service)

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var httpErr *echo.HTTPError
			if err != nil && errors.As(err, &httpErr) {
				status = httpErr.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(service, route, c.Request().Method, status, time.Since(start))
			return err
		}
	}
}

// EchoHandler Echo 框架的 Prometheus metrics 处理器，gatherer 为 nil 时使用默认 registry
func EchoHandler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	var h http.Handler
	if gatherer == nil {
		h = promhttp.Handler()
	} else {
		h = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	}
}
