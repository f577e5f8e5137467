// File: internal/pkg/ctxkey/ctxkey.go
package ctxkey

import "context"

// ContextKey 统一的 context key 类型
type ContextKey string

const (
	// TraceID 请求追踪 ID
	TraceID ContextKey = "trace_id"

	// RunID 表单提交（工作流运行）ID
	RunID ContextKey = "run_id"

	// HTTPMethod HTTP 请求方法
	HTTPMethod ContextKey = "http_method"

	// Language 响应语言
	Language ContextKey = "language"
)

// WithValue 在 context 中设置指定 key 的值
func WithValue(ctx context.Context, key ContextKey, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// GetString 从 context 中获取字符串类型的值
func GetString(ctx context.Context, key ContextKey) string {
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
