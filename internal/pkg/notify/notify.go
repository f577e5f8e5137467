// Package notify 向用户发送一次性提示（toast）
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"snapgram/internal/pkg/ctxkey"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/xerrors"
)

// DefaultSubject toast 事件主题
const DefaultSubject = "snapgram.toast"

// Toast 一条短暂显示的提示
type Toast struct {
	Title string `json:"title"`
}

// Notifier 发送提示，调用方不关心结果
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// Func 把函数适配为 Notifier
type Func func(ctx context.Context, t Toast)

func (f Func) Notify(ctx context.Context, t Toast) { f(ctx, t) }

// Recorder 收集本次请求产生的提示，随 HTTP 响应返回
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// NewRecorder 创建 Recorder
func NewRecorder() *Recorder { return &Recorder{} }

// Notify 实现 Notifier
func (r *Recorder) Notify(_ context.Context, t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

// Toasts 返回已收集的提示副本
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Titles 只返回标题
func (r *Recorder) Titles() []string {
	ts := r.Toasts()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

// Multi 依次转发给多个 Notifier
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, t)
		}
	}
}

// Event 发布到 NATS 的消息体
type Event struct {
	Title   string    `json:"title"`
	RunID   string    `json:"run_id,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
	At      time.Time `json:"at"`
}

// publisher *nats.Conn 满足此接口
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher 把提示发布到 NATS，没有连接时静默降级
type NATSPublisher struct {
	subject string
	logger  log.Logger
	clock   func() time.Time

	mu   sync.RWMutex
	conn publisher
}

// NewNATSPublisher 创建发布器，conn 可以稍后通过 SetConn 设置
func NewNATSPublisher(conn *nats.Conn, subject string, logger log.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	p := &NATSPublisher{
		subject: subject,
		logger:  logger.With("component", "toast_publisher"),
		clock:   time.Now,
	}
	if conn != nil {
		p.conn = conn
	}
	return p
}

// SetConn 设置连接（由 main 提供）
func (p *NATSPublisher) SetConn(conn *nats.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn == nil {
		p.conn = nil
		return
	}
	p.conn = conn
}

// Publish 发布一条提示
func (p *NATSPublisher) Publish(ctx context.Context, t Toast) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return nil
	}

	data, err := json.Marshal(Event{
		Title:   t.Title,
		RunID:   ctxkey.GetString(ctx, ctxkey.RunID),
		TraceID: ctxkey.GetString(ctx, ctxkey.TraceID),
		At:      p.clock().UTC(),
	})
	if err != nil {
		return xerrors.Wrap(err, xerrors.CodeMessageQueueError, "marshal toast event failed")
	}
	if err := conn.Publish(p.subject, data); err != nil {
		return xerrors.Wrap(err, xerrors.CodeMessageQueueError, "publish toast event failed").
			WithMetadata("subject", p.subject)
	}
	return nil
}

// Notify 实现 Notifier，发布失败只记录日志
func (p *NATSPublisher) Notify(ctx context.Context, t Toast) {
	if err := p.Publish(ctx, t); err != nil {
		p.logger.WarnContext(ctx, "toast publish failed", log.String("subject", p.subject), log.Err(err))
	}
}

// Connect 连接 NATS，url 为空时返回 nil
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.CodeMessageQueueError, "connect nats failed").
			WithMetadata("url", url)
	}
	return conn, nil
}
