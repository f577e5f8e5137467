package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderSessionToken native 客户端携带 session token 的 header
const HeaderSessionToken = "X-Session-Token"

// sessionTokenKey echo context 中保存 token 的 key
const sessionTokenKey = "session_token"

// SessionTokenMiddleware 从 cookie 或 X-Session-Token header 取出 session token
// header 优先；没有 token 的请求照常放行
func SessionTokenMiddleware(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimSpace(c.Request().Header.Get(HeaderSessionToken))
			if token == "" && cookieName != "" {
				if cookie, err := c.Cookie(cookieName); err == nil {
					token = cookie.Value
				}
			}
			if token != "" {
				c.Set(sessionTokenKey, token)
			}
			return next(c)
		}
	}
}

// SessionToken 返回 SessionTokenMiddleware 取出的 token
func SessionToken(c echo.Context) string {
	token, _ := c.Get(sessionTokenKey).(string)
	return token
}
