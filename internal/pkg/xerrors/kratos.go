// File: internal/pkg/xerrors/kratos.go
package xerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kratos UI 消息 ID（只列出需要区分的几类）
const (
	KratosIDValidationGeneric     int64 = 4000001
	KratosIDValidationRequired    int64 = 4000002
	KratosIDValidationMinLength   int64 = 4000003
	KratosIDValidationFormat      int64 = 4000004
	KratosIDPasswordPolicy        int64 = 4000005
	KratosIDInvalidCredentials    int64 = 4000006
	KratosIDDuplicateCredentials  int64 = 4000007
	KratosIDAddressNotVerified    int64 = 4000010
	KratosIDSessionAlreadyPresent int64 = 4010007
)

// KratosMessage Kratos UI 中的一条消息
type KratosMessage struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// kratosFlowPayload 失败响应中我们关心的字段
type kratosFlowPayload struct {
	UI struct {
		Messages []KratosMessage `json:"messages"`
		Nodes    []struct {
			Messages []KratosMessage `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error *struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// bodyError 由 kratos-client-go 的 GenericOpenAPIError 实现
type bodyError interface {
	error
	Body() []byte
}

// KratosOutcome 一次 Kratos 调用的分类结果
type KratosOutcome struct {
	// Rejected 表示 Kratos 正常处理了请求但拒绝了它（凭据错误、重复注册等）
	Rejected bool
	// Reason 拒绝原因对应的业务错误码
	Reason ErrorCode
	// Messages 从响应体中解析的 UI 消息
	Messages []KratosMessage
	// Err 非拒绝类失败（网络、5xx、流程过期）
	Err *AppError
}

// ClassifyKratos 将 SDK 的 (resp, err) 归类为“拒绝”或“故障”
// err 为 nil 时返回零值
func ClassifyKratos(operation string, resp *http.Response, err error) KratosOutcome {
	if err == nil {
		return KratosOutcome{}
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	var messages []KratosMessage
	var be bodyError
	if errors.As(err, &be) {
		messages = parseKratosMessages(be.Body())
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return KratosOutcome{
			Rejected: true,
			Reason:   rejectionReason(status, messages),
			Messages: messages,
		}
	}

	appErr := FromCode(CodeKratosError).
		WithService("kratos", operation).
		WithMetadata("status_code", status)
	appErr.Err = err
	if len(messages) > 0 {
		appErr.WithMetadata("kratos_message", messages[0].Text)
	}
	return KratosOutcome{Err: appErr}
}

// NewKratosDataIntegrityError Kratos 返回了不完整的数据
func NewKratosDataIntegrityError(operation, field string) *AppError {
	return FromCode(CodeDataIntegrityError).
		WithService("kratos", operation).
		WithMetadata("field", field)
}

func rejectionReason(status int, messages []KratosMessage) ErrorCode {
	for _, m := range messages {
		switch m.ID {
		case KratosIDInvalidCredentials:
			return CodeInvalidCredentials
		case KratosIDDuplicateCredentials:
			return CodeDuplicateResource
		case KratosIDSessionAlreadyPresent:
			return CodeAuthenticationFailed
		}
	}
	if status == http.StatusUnauthorized {
		return CodeInvalidCredentials
	}
	return CodeInvalidParams
}

func parseKratosMessages(body []byte) []KratosMessage {
	if len(body) == 0 {
		return nil
	}
	var payload kratosFlowPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	messages := append([]KratosMessage(nil), payload.UI.Messages...)
	for _, node := range payload.UI.Nodes {
		messages = append(messages, node.Messages...)
	}
	if len(messages) == 0 && payload.Error != nil && payload.Error.Reason != "" {
		messages = append(messages, KratosMessage{
			Text: fmt.Sprintf("%s: %s", payload.Error.Status, payload.Error.Reason),
			Type: "error",
		})
	}
	return messages
}
