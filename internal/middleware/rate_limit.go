package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"snapgram/internal/pkg/xerrors"
)

// RateLimitMiddleware 按客户端 IP 限流，用于表单提交接口
func RateLimitMiddleware(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 10
	}
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return xerrors.FromCode(xerrors.CodeInvalidRequest).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("reason", "identifier extraction failed")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return xerrors.FromCode(xerrors.CodeRateLimitExceeded).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("client_ip", identifier)
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
