// File: internal/pkg/xerrors/errors.go
package xerrors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	LevelInfo ErrorLevel = iota
	LevelWarn
	LevelError
	LevelCritical
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorContext 错误上下文信息
type ErrorContext struct {
	TraceID   string         `json:"trace_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Service   string         `json:"service,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AppError 领域错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	Level    ErrorLevel `json:"level,omitempty"`
	Category string     `json:"category,omitempty"`

	Context   *ErrorContext `json:"context,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`

	// 调试信息
	Stack string `json:"stack,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`

	Retryable bool `json:"retryable,omitempty"`
}

// Error 实现标准 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *AppError) Unwrap() error {
	return e.Err
}

// LogValue 实现 slog.LogValuer 接口
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("code", int(e.Code)),
		slog.String("message", e.Message),
		slog.String("level", e.Level.String()),
		slog.String("category", e.Category),
		slog.Bool("retryable", e.Retryable),
	}

	if e.Context != nil {
		if e.Context.TraceID != "" {
			attrs = append(attrs, slog.String("trace_id", e.Context.TraceID))
		}
		if e.Context.RunID != "" {
			attrs = append(attrs, slog.String("run_id", e.Context.RunID))
		}
		if e.Context.Service != "" {
			attrs = append(attrs, slog.String("service", e.Context.Service))
		}
		if e.Context.Operation != "" {
			attrs = append(attrs, slog.String("operation", e.Context.Operation))
		}
		if len(e.Context.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", e.Context.Metadata))
		}
	}

	if e.Err != nil {
		attrs = append(attrs, slog.Any("underlying_error", e.Err))
	}

	return slog.GroupValue(attrs...)
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(ctx *ErrorContext) *AppError {
	newErr := *e
	newErr.Context = ctx
	return &newErr
}

// WithTraceID 添加 TraceID
func (e *AppError) WithTraceID(traceID string) *AppError {
	e.ensureContext().TraceID = traceID
	return e
}

// WithRunID 记录所属的工作流运行
func (e *AppError) WithRunID(runID string) *AppError {
	e.ensureContext().RunID = runID
	return e
}

// WithService 添加服务和操作信息
func (e *AppError) WithService(service, operation string) *AppError {
	c := e.ensureContext()
	c.Service = service
	c.Operation = operation
	return e
}

// WithMetadata 添加自定义元数据
func (e *AppError) WithMetadata(key string, value any) *AppError {
	c := e.ensureContext()
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return e
}

func (e *AppError) ensureContext() *ErrorContext {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	return e.Context
}

// IsRetryable 判断是否为可重试错误
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// IsCritical 判断是否为严重错误
func (e *AppError) IsCritical() bool {
	return e.Level == LevelCritical
}

// New 创建新的AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Level:     getLevelByCode(code),
		Category:  getCategoryByCode(code),
		Timestamp: time.Now(),
		Retryable: isRetryableByCode(code),
	}
}

// NewWithError 创建包含原始错误的 AppError
func NewWithError(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.Err = err

	if pc, file, line, ok := runtime.Caller(1); ok {
		appErr.File = file
		appErr.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			appErr.Stack = fn.Name()
		}
	}

	return appErr
}

// FromCode 根据错误码创建 AppError
func FromCode(code ErrorCode) *AppError {
	msg, ok := codeMessages[code]
	if !ok {
		msg = codeMessages[CodeInternalError]
	}
	return New(code, msg)
}

// Wrap 包装标准错误为 AppError，已是 AppError 时原样返回
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewWithError(code, message, err)
}

// As 从错误链中取出 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf 返回错误链中 AppError 的错误码，非 AppError 时返回 CodeInternalError
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// ==================== 常用构造函数 ====================

func NewValidationError(field, message string) *AppError {
	return FromCode(CodeInvalidParams).
		WithMetadata("field", field).
		WithMetadata("validation_message", message)
}

func NewAuthError(message string) *AppError {
	return FromCode(CodeAuthenticationFailed).
		WithMetadata("auth_message", message)
}

func NewSubmissionInFlightError(key string) *AppError {
	return FromCode(CodeSubmissionInFlight).
		WithMetadata("submission_key", key)
}

func NewCanceledError(operation string, err error) *AppError {
	appErr := FromCode(CodeOperationCanceled).
		WithMetadata("operation", operation)
	appErr.Err = err
	return appErr
}

func NewCacheError(operation string, err error) *AppError {
	appErr := FromCode(CodeCacheError).
		WithMetadata("cache_operation", operation)
	appErr.Err = err
	return appErr
}

// NewSessionExpiredError 创建会话过期错误
func NewSessionExpiredError() *AppError {
	return FromCode(CodeSessionExpired)
}
