package workflow

import (
	"context"
	"sync/atomic"
)

// Mutation 包装一个异步外部操作，暴露 pending 标志供提交按钮使用
type Mutation[I, O any] struct {
	fn      func(ctx context.Context, in I) (O, error)
	pending atomic.Int32
}

// NewMutation 创建 Mutation
func NewMutation[I, O any](fn func(ctx context.Context, in I) (O, error)) *Mutation[I, O] {
	return &Mutation[I, O]{fn: fn}
}

// Do 执行操作
func (m *Mutation[I, O]) Do(ctx context.Context, in I) (O, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)
	return m.fn(ctx, in)
}

// IsPending 是否有调用尚未返回
func (m *Mutation[I, O]) IsPending() bool {
	return m.pending.Load() > 0
}
