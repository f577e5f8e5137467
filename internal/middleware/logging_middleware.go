package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"snapgram/internal/pkg/log"
)

// LoggingConfig 日志配置
type LoggingConfig struct {
	// SkipPaths 跳过日志记录的路径
	SkipPaths []string

	// DetailedLog 是否记录请求头、UA 等详细信息
	DetailedLog bool

	// SensitiveHeaders 需要脱敏的 Header
	SensitiveHeaders []string
}

// DefaultLoggingConfig 默认日志配置
// 请求体里有密码，不提供记录请求体的选项
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/favicon.ico",
		},
		SensitiveHeaders: []string{
			"Authorization",
			"Cookie",
			HeaderSessionToken,
		},
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware(logger log.Logger) echo.MiddlewareFunc {
	return LoggingMiddlewareWithConfig(logger, DefaultLoggingConfig())
}

// LoggingMiddlewareWithConfig 带配置的日志中间件
// trace_id 由 log.ContextHandler 从 context 中补充
func LoggingMiddlewareWithConfig(logger log.Logger, config *LoggingConfig) echo.MiddlewareFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if shouldSkip(c.Request().URL.Path, config.SkipPaths) {
				return next(c)
			}

			start := time.Now()
			req := c.Request()

			baseFields := []any{
				log.String("method", req.Method),
				log.String("path", req.URL.Path),
				log.String("client_ip", c.RealIP()),
			}
			if config.DetailedLog {
				if req.URL.RawQuery != "" {
					baseFields = append(baseFields, log.String("query", req.URL.RawQuery))
				}
				baseFields = append(baseFields, log.String("user_agent", req.UserAgent()))
				if headers := sanitizeHeaders(req.Header, config.SensitiveHeaders); len(headers) > 0 {
					baseFields = append(baseFields, log.Any("headers", headers))
				}
			}
			logger.DebugContext(req.Context(), "request started", baseFields...)

			err := next(c)

			// handler 内部可能替换了 request context，重新取一次
			ctx := c.Request().Context()
			statusCode := c.Response().Status
			responseFields := []any{
				log.String("method", req.Method),
				log.String("path", req.URL.Path),
				log.Int("status_code", statusCode),
				log.Duration("duration", time.Since(start).Milliseconds()),
				log.Any("response_size", c.Response().Size),
			}

			if err != nil {
				responseFields = append(responseFields, log.Any("error", err))
				logger.ErrorContext(ctx, "request failed", responseFields...)
				return err
			}
			switch {
			case statusCode >= 500:
				logger.ErrorContext(ctx, "request completed (server error)", responseFields...)
			case statusCode >= 400:
				logger.WarnContext(ctx, "request completed (client error)", responseFields...)
			default:
				logger.InfoContext(ctx, "request completed", responseFields...)
			}
			return nil
		}
	}
}

// shouldSkip 检查是否应该跳过日志记录
func shouldSkip(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// sanitizeHeaders 脱敏敏感 Header
func sanitizeHeaders(headers map[string][]string, sensitiveHeaders []string) map[string]string {
	result := make(map[string]string)
	for k, v := range headers {
		if len(v) == 0 {
			continue
		}

		isSensitive := false
		for _, sensitive := range sensitiveHeaders {
			if strings.EqualFold(k, sensitive) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			result[k] = "***REDACTED***"
		} else {
			result[k] = v[0]
		}
	}
	return result
}
