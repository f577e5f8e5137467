// File: internal/pkg/i18n/middleware.go
package i18n

import (
	"github.com/labstack/echo/v4"
)

// Middleware 从 ?lang= 或 Accept-Language 中提取语言偏好并存储到 context
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := ParseAcceptLanguage(c.Request().Header.Get("Accept-Language"))
			if code := c.QueryParam("lang"); code != "" {
				lang = ParseLanguageCode(code)
			}

			c.SetRequest(c.Request().WithContext(WithLanguage(c.Request().Context(), lang)))
			return next(c)
		}
	}
}
