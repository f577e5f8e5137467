// File: internal/pkg/xerrors/codes.go
package xerrors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (undefined)", c)
}

// Message 返回错误码对应的消息
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unknown error"
}

// ToInt 转换为 int（用于 JSON 序列化等场景）
func (c ErrorCode) ToInt() int {
	return int(c)
}

// -----------------------------------------------------------------------------
// 错误码统一定义，按领域分段。
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess           ErrorCode = 100000 // 操作成功
	CodeInternalError     ErrorCode = 100001 // 内部服务错误
	CodeInvalidParams     ErrorCode = 100002 // 参数错误
	CodeInvalidRequest    ErrorCode = 100003 // 请求格式错误
	CodeResourceNotFound  ErrorCode = 100404 // 资源不存在
	CodeDuplicateResource ErrorCode = 100409 // 资源已存在
	CodeRateLimitExceeded ErrorCode = 100429 // 请求频率限制

	// 2xxxxx: 认证相关错误码
	CodeAuthenticationFailed ErrorCode = 200001 // 认证失败
	CodeInvalidToken         ErrorCode = 200002 // 无效令牌
	CodeInvalidCredentials   ErrorCode = 200004 // 凭据无效
	CodeSessionExpired       ErrorCode = 200007 // 会话过期
	CodeSubmissionInFlight   ErrorCode = 200008 // 同一表单正在提交

	// 4xxxxx: 账户错误码
	CodeAccountRejected ErrorCode = 400002 // 后端拒绝创建账户

	// 6xxxxx: 业务逻辑错误码
	CodeDataIntegrityError ErrorCode = 600002 // 数据完整性错误
	CodeOperationCanceled  ErrorCode = 600006 // 操作被取消

	// 7xxxxx: 外部服务错误码
	CodeExternalServiceError ErrorCode = 700001 // 外部服务错误
	CodeKratosError          ErrorCode = 700002 // Kratos服务错误
	CodeCacheError           ErrorCode = 700004 // 缓存服务错误
	CodeMessageQueueError    ErrorCode = 700005 // 消息队列错误
)

// codeMessages 错误码默认文案
var codeMessages = map[ErrorCode]string{
	CodeSuccess:           "ok",
	CodeInternalError:     "internal server error",
	CodeInvalidParams:     "invalid parameters",
	CodeInvalidRequest:    "malformed request",
	CodeResourceNotFound:  "resource not found",
	CodeDuplicateResource: "resource already exists",
	CodeRateLimitExceeded: "too many requests",

	CodeAuthenticationFailed: "authentication failed",
	CodeInvalidToken:         "invalid session token",
	CodeInvalidCredentials:   "invalid credentials",
	CodeSessionExpired:       "session expired",
	CodeSubmissionInFlight:   "a submission for this form is already in progress",

	CodeAccountRejected: "account creation rejected",

	CodeDataIntegrityError: "inconsistent data from identity service",
	CodeOperationCanceled:  "operation canceled",

	CodeExternalServiceError: "external service error",
	CodeKratosError:          "identity service error",
	CodeCacheError:           "cache service error",
	CodeMessageQueueError:    "message queue error",
}

// GetHTTPStatus 根据业务错误码获取HTTP状态码
func GetHTTPStatus(code ErrorCode) int {
	switch {
	case code == CodeSuccess:
		return http.StatusOK
	case code == CodeSubmissionInFlight:
		return http.StatusConflict
	case code >= 200000 && code < 300000:
		return http.StatusUnauthorized
	case code == CodeAccountRejected:
		return http.StatusUnprocessableEntity
	case code == CodeResourceNotFound:
		return http.StatusNotFound
	case code == CodeDuplicateResource:
		return http.StatusConflict
	case code == CodeInvalidParams || code == CodeInvalidRequest:
		return http.StatusBadRequest
	case code == CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case code == CodeOperationCanceled:
		return http.StatusRequestTimeout
	case code == CodeDataIntegrityError, code >= 700000:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 200000 && code < 300000:
		return "authentication"
	case code >= 400000 && code < 500000:
		return "account"
	case code >= 600000 && code < 700000:
		return "business"
	case code >= 700000 && code < 800000:
		return "external"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code >= 100002 && code <= 100003, code == CodeSubmissionInFlight:
		return LevelWarn
	case code >= 700001: // 外部服务错误
		return LevelCritical
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
func isRetryableByCode(code ErrorCode) bool {
	switch code {
	case CodeInternalError, CodeExternalServiceError, CodeKratosError,
		CodeCacheError, CodeMessageQueueError, CodeRateLimitExceeded:
		return true
	}
	return false
}
