package handler

import "github.com/labstack/echo/v4"

// Register 注册 /auth 下的路由，submit 中间件只加在提交接口上（如限流）
func (h *AuthHandler) Register(g *echo.Group, submit ...echo.MiddlewareFunc) {
	g.POST("/sign-up", h.SignUp, submit...)
	g.POST("/sign-in", h.SignIn, submit...)
	g.POST("/validate/:schema", h.Validate)
	g.GET("/me", h.Me)
	g.POST("/sign-out", h.SignOut)
}
