package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/response"
	"snapgram/internal/pkg/xerrors"
)

// RecoveryMiddleware 捕获 handler 中的 panic 并返回 500
func RecoveryMiddleware(respWriter response.Writer, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := c.Request().Context()

				logger.ErrorContext(ctx, "handler panic",
					log.Any("panic_value", r),
					log.String("path", c.Request().URL.Path),
					log.String("method", c.Request().Method),
				)

				appErr := xerrors.FromCode(xerrors.CodeInternalError).
					WithService("echo-middleware", "recovery").
					WithMetadata("panic_value", fmt.Sprintf("%v", r))

				if c.Response().Committed {
					return
				}
				err = respWriter.WriteError(ctx, c.Response(), appErr)
			}()

			return next(c)
		}
	}
}
