// File: internal/pkg/i18n/error_messages.go
package i18n

import (
	"context"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snapgram/internal/pkg/xerrors"
)

// zhMessages 错误码的中文文案，英文直接使用 ErrorCode.Message()
var zhMessages = map[xerrors.ErrorCode]string{
	xerrors.CodeSuccess:           "操作成功",
	xerrors.CodeInternalError:     "内部服务错误",
	xerrors.CodeInvalidParams:     "参数错误",
	xerrors.CodeInvalidRequest:    "请求格式错误",
	xerrors.CodeResourceNotFound:  "资源不存在",
	xerrors.CodeDuplicateResource: "资源已存在",
	xerrors.CodeRateLimitExceeded: "请求过于频繁",

	xerrors.CodeAuthenticationFailed: "认证失败",
	xerrors.CodeInvalidToken:         "无效的会话令牌",
	xerrors.CodeInvalidCredentials:   "凭据无效",
	xerrors.CodeSessionExpired:       "会话过期",
	xerrors.CodeSubmissionInFlight:   "该表单正在提交中",

	xerrors.CodeAccountRejected: "账户创建被拒绝",

	xerrors.CodeDataIntegrityError: "身份服务返回的数据不完整",
	xerrors.CodeOperationCanceled:  "操作已取消",

	xerrors.CodeExternalServiceError: "外部服务错误",
	xerrors.CodeKratosError:          "身份服务错误",
	xerrors.CodeCacheError:           "缓存服务错误",
	xerrors.CodeMessageQueueError:    "消息队列错误",
}

// catalogKey 错误码在消息目录中的 key
func catalogKey(code xerrors.ErrorCode) string {
	return "code." + strconv.Itoa(code.ToInt())
}

// init 初始化消息目录
func init() {
	for code, msg := range zhMessages {
		_ = message.SetString(language.English, catalogKey(code), code.Message())
		_ = message.SetString(language.Chinese, catalogKey(code), msg)
	}
}

// GetErrorMessage 错误码在指定语言下的文案，没有翻译时返回英文
func GetErrorMessage(code xerrors.ErrorCode, lang language.Tag) string {
	if _, ok := zhMessages[code]; !ok {
		return code.Message()
	}
	return Printer(lang).Sprintf(catalogKey(code))
}

// Message 按 context 中的语言给出错误码文案
func Message(ctx context.Context, code xerrors.ErrorCode) string {
	return GetErrorMessage(code, GetLanguage(ctx))
}
