package validation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// EchoValidator 让 echo 的 c.Validate 复用同一个 validator 实例
// 仅用于路由参数、查询参数这类带 struct tag 的请求体
type EchoValidator struct {
	validator *validator.Validate
}

// NewEchoValidator 创建 echo.Validator
func NewEchoValidator() echo.Validator {
	return &EchoValidator{validator: validate()}
}

// Validate 实现 echo.Validator
func (v *EchoValidator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	return echo.NewHTTPError(http.StatusBadRequest, TranslateStructErrors(err)).SetInternal(err)
}

// TranslateStructErrors 把 validator.ValidationErrors 转成 字段 -> 消息
func TranslateStructErrors(err error) FieldErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"request": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = translateFieldError(fe)
	}
	return out
}

func translateFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "email":
		return "Invalid email"
	default:
		return "Invalid value"
	}
}
