// Package response 统一的 JSON 响应信封
package response

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"snapgram/internal/pkg/ctxkey"
	"snapgram/internal/pkg/i18n"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/xerrors"
)

// EmptyData 表示成功但没有数据
type EmptyData struct{}

// Result 通用的 API 响应结构体
type Result[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Writer 响应写入器
type Writer interface {
	WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error
	// WriteCoded 使用业务码对应的 HTTP 状态，同时携带数据（例如字段错误、提示）
	WriteCoded(ctx context.Context, w http.ResponseWriter, code xerrors.ErrorCode, data any) error
	WriteError(ctx context.Context, w http.ResponseWriter, err error) error
	WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error
}

// JSONWriter 默认实现
type JSONWriter struct {
	logger log.Logger
	// exposeDetails 非生产环境在响应中附带底层错误
	exposeDetails bool
	clock         func() time.Time
}

// NewWriter 创建响应写入器
func NewWriter(logger log.Logger, environment string) *JSONWriter {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &JSONWriter{
		logger:        logger.With("component", "response"),
		exposeDetails: environment != "production",
		clock:         time.Now,
	}
}

// WriteSuccess 200 + CodeSuccess
func (h *JSONWriter) WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error {
	return h.WriteCoded(ctx, w, xerrors.CodeSuccess, data)
}

// WriteCoded 实现 Writer
func (h *JSONWriter) WriteCoded(ctx context.Context, w http.ResponseWriter, code xerrors.ErrorCode, data any) error {
	resp := &Result[any]{
		Code:      int(code),
		Message:   i18n.Message(ctx, code),
		Timestamp: h.clock().Unix(),
		TraceID:   ctxkey.GetString(ctx, ctxkey.TraceID),
	}
	if data != nil {
		resp.Data = &data
	}
	return h.write(ctx, w, xerrors.GetHTTPStatus(code), resp)
}

// WriteError 把任意错误转换为 AppError 写出
func (h *JSONWriter) WriteError(ctx context.Context, w http.ResponseWriter, err error) error {
	appErr := xerrors.Wrap(err, xerrors.CodeInternalError, "")
	if appErr == nil {
		appErr = xerrors.FromCode(xerrors.CodeInternalError)
	}

	// 默认文案按请求语言翻译，自定义文案原样返回
	msg := appErr.Message
	if msg == "" || msg == appErr.Code.Message() {
		msg = i18n.Message(ctx, appErr.Code)
	}
	resp := &Result[EmptyData]{
		Code:      int(appErr.Code),
		Message:   msg,
		Timestamp: h.clock().Unix(),
		TraceID:   ctxkey.GetString(ctx, ctxkey.TraceID),
	}
	if h.exposeDetails && appErr.Err != nil {
		resp.Error = appErr.Err.Error()
	}
	return h.write(ctx, w, xerrors.GetHTTPStatus(appErr.Code), resp)
}

// WriteJSON 直接写出 data，不包装
func (h *JSONWriter) WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	return h.write(ctx, w, statusCode, data)
}

func (h *JSONWriter) write(ctx context.Context, w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	// header 已写出，序列化失败只能记录日志
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "write json response failed", log.Err(err))
		return err
	}
	return nil
}
