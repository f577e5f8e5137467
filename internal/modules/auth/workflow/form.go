package workflow

import "sync"

// MapForm 以 map 保存的表单值，Reset 把所有字段清空为 ""
type MapForm struct {
	mu     sync.Mutex
	values map[string]any
	resets int
}

// NewMapForm 复制 raw 作为初始值
func NewMapForm(raw map[string]any) *MapForm {
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		values[k] = v
	}
	return &MapForm{values: values}
}

// Reset 实现 Form
func (f *MapForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.values {
		f.values[k] = ""
	}
	f.resets++
}

// Values 当前表单值的副本
func (f *MapForm) Values() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Resets Reset 被调用的次数
func (f *MapForm) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}
