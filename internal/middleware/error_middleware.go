package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/response"
	"snapgram/internal/pkg/xerrors"
)

// ErrorHandler echo 的统一错误处理：所有错误都以响应信封返回
func ErrorHandler(respWriter response.Writer, logger log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()

		var appErr *xerrors.AppError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &he):
			appErr = convertEchoError(he)
		default:
			appErr = xerrors.NewWithError(xerrors.CodeInternalError, "", err).
				WithService("echo-middleware", "error_handler")
			logger.ErrorContext(ctx, "unhandled error",
				log.Any("original_error", err),
				log.String("error_type", fmt.Sprintf("%T", err)),
			)
		}

		if werr := respWriter.WriteError(ctx, c.Response(), appErr); werr != nil {
			logger.ErrorContext(ctx, "write error response failed", log.Err(werr))
		}
	}
}

// convertEchoError 将 echo.HTTPError 转换为业务错误
func convertEchoError(he *echo.HTTPError) *xerrors.AppError {
	var code xerrors.ErrorCode
	switch he.Code {
	case http.StatusBadRequest:
		code = xerrors.CodeInvalidParams
	case http.StatusUnauthorized:
		code = xerrors.CodeAuthenticationFailed
	case http.StatusNotFound:
		code = xerrors.CodeResourceNotFound
	case http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
		code = xerrors.CodeInvalidRequest
	case http.StatusConflict:
		code = xerrors.CodeDuplicateResource
	case http.StatusTooManyRequests:
		code = xerrors.CodeRateLimitExceeded
	default:
		return xerrors.FromCode(xerrors.CodeInternalError).
			WithMetadata("echo_code", he.Code).
			WithMetadata("echo_message", fmt.Sprintf("%v", he.Message))
	}
	appErr := xerrors.FromCode(code).WithMetadata("echo_message", fmt.Sprintf("%v", he.Message))
	appErr.Err = he
	return appErr
}
