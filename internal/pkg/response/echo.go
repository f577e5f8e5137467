package response

import (
	"github.com/labstack/echo/v4"

	"snapgram/internal/pkg/xerrors"
)

// Echo 框架适配器

// EchoOK 成功响应
func EchoOK(c echo.Context, h Writer, data any) error {
	return h.WriteSuccess(c.Request().Context(), c.Response(), data)
}

// EchoCoded 业务码 + 数据
func EchoCoded(c echo.Context, h Writer, code xerrors.ErrorCode, data any) error {
	return h.WriteCoded(c.Request().Context(), c.Response(), code, data)
}

// EchoError 错误响应
func EchoError(c echo.Context, h Writer, err error) error {
	return h.WriteError(c.Request().Context(), c.Response(), err)
}

// EchoBadRequest 400 错误响应
func EchoBadRequest(c echo.Context, h Writer, field, message string) error {
	return h.WriteError(c.Request().Context(), c.Response(), xerrors.NewValidationError(field, message))
}

// EchoUnauthorized 401 错误响应
func EchoUnauthorized(c echo.Context, h Writer, message string) error {
	return h.WriteError(c.Request().Context(), c.Response(), xerrors.NewAuthError(message))
}

// EchoJSON 直接返回 JSON（不包装）
func EchoJSON(c echo.Context, h Writer, data any, statusCode int) error {
	return h.WriteJSON(c.Request().Context(), c.Response(), data, statusCode)
}
