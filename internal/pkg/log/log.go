// File: internal/pkg/log/log.go
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"snapgram/internal/pkg/ctxkey"
	"snapgram/internal/pkg/xerrors"
)

// Logger 接口定义（在消费端定义）
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// StructuredLogger slog的包装器
type StructuredLogger struct {
	logger *slog.Logger
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// Init 初始化日志器
func Init(level slog.Level, environment string) {
	InitWithWriter(os.Stdout, level, environment)
}

// InitWithWriter 初始化日志器并指定输出
func InitWithWriter(w io.Writer, level slog.Level, environment string) {
	var handler slog.Handler

	// 生产环境输出 JSON，开发环境输出带源码位置的文本
	if environment == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}

	logger := slog.New(NewContextHandler(handler))

	globalMu.Lock()
	globalLogger = &StructuredLogger{logger: logger}
	globalMu.Unlock()

	slog.SetDefault(logger)
}

// ParseLevel 将配置中的级别字符串转换为 slog.Level，无法识别时返回 Info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger 获取全局logger
func GetLogger() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		Init(slog.LevelInfo, "development")
		globalMu.RLock()
		l = globalLogger
		globalMu.RUnlock()
	}
	return l
}

// NewLogger 创建新的logger实例
func NewLogger(handler slog.Handler) Logger {
	return &StructuredLogger{
		logger: slog.New(NewContextHandler(handler)),
	}
}

// Discard 丢弃所有输出，测试中使用
func Discard() Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

func (l *StructuredLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *StructuredLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *StructuredLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *StructuredLogger) Error(msg string, err error, args ...any) {
	args = append(args, slog.Any("error", err))
	l.logger.Error(msg, args...)
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

func (l *StructuredLogger) With(args ...any) Logger {
	return &StructuredLogger{
		logger: l.logger.With(args...),
	}
}

func (l *StructuredLogger) WithGroup(name string) Logger {
	return &StructuredLogger{
		logger: l.logger.WithGroup(name),
	}
}

// ContextHandler 上下文感知的handler，从 context 中补充 trace_id / run_id
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler 创建上下文handler
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if traceID := ctxkey.GetString(ctx, ctxkey.TraceID); traceID != "" {
			r.AddAttrs(slog.String("trace_id", traceID))
		}
		if runID := ctxkey.GetString(ctx, ctxkey.RunID); runID != "" {
			r.AddAttrs(slog.String("run_id", runID))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}

// LogAppError 按 AppError 的级别记录日志
func LogAppError(ctx context.Context, logger Logger, msg string, appErr *xerrors.AppError) {
	if logger == nil {
		logger = GetLogger()
	}
	if appErr == nil {
		return
	}
	switch appErr.Level {
	case xerrors.LevelCritical, xerrors.LevelError:
		logger.ErrorContext(ctx, msg, slog.Any("app_error", appErr))
	case xerrors.LevelWarn:
		logger.WarnContext(ctx, msg, slog.Any("app_error", appErr))
	default:
		logger.InfoContext(ctx, msg, slog.Any("app_error", appErr))
	}
}

// 结构化日志辅助函数

// String 字符串属性
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int 整数属性
func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

// Bool 布尔属性
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Any 任意类型属性
func Any(key string, value interface{}) slog.Attr {
	return slog.Any(key, value)
}

// Err 错误属性
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration 时间间隔属性（以毫秒为单位）
func Duration(key string, duration int64) slog.Attr {
	return slog.Int64(key+"_ms", duration)
}
