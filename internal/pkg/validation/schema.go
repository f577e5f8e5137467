// Package validation 定义各个表单的字段约束以及记录级校验
package validation

import (
	"fmt"
	"strings"

	"snapgram/internal/pkg/xerrors"
)

const (
	MsgRequired       = "Required"
	MsgExpectedString = "Expected string, received %s"
)

// FieldErrors 字段名 -> 错误消息，每个字段最多一条
type FieldErrors map[string]string

// Schema 一个表单的字段集合，build 把通过类型检查的值组装成具体记录
type Schema[T any] struct {
	name   string
	fields []Field
	build  func(values map[string]string, raw map[string]any) T
}

// NewSchema 创建 schema，字段顺序即错误输出顺序
func NewSchema[T any](name string, build func(map[string]string, map[string]any) T, fields ...Field) Schema[T] {
	return Schema[T]{name: name, fields: fields, build: build}
}

// Name schema 名称
func (s Schema[T]) Name() string { return s.name }

// FieldNames 按定义顺序返回字段名
func (s Schema[T]) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Result 校验结果：要么 Value 有效，要么 Errors 非空
type Result[T any] struct {
	Value  T
	Errors FieldErrors

	order []string
}

// OK 是否通过
func (r Result[T]) OK() bool { return len(r.Errors) == 0 }

// Fields 按 schema 顺序返回出错的字段
func (r Result[T]) Fields() []string {
	out := make([]string, 0, len(r.Errors))
	for _, name := range r.order {
		if _, ok := r.Errors[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Err 把字段错误转换为 AppError，通过时返回 nil
func (r Result[T]) Err() *xerrors.AppError {
	if r.OK() {
		return nil
	}
	fields := r.Fields()
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f, r.Errors[f]))
	}
	return xerrors.NewValidationError(strings.Join(fields, ","), strings.Join(msgs, "; "))
}

// Validate 按 schema 校验原始表单记录
// 每个字段独立校验，一个字段失败不影响其它字段给出各自的错误
func Validate[T any](s Schema[T], raw map[string]any) Result[T] {
	values := make(map[string]string, len(s.fields))
	errs := FieldErrors{}
	for _, f := range s.fields {
		v, msg := f.check(raw)
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		values[f.Name] = v
	}

	res := Result[T]{Errors: errs, order: s.FieldNames()}
	if len(errs) > 0 {
		return res
	}
	res.Errors = nil
	res.Value = s.build(values, raw)
	return res
}

// Checker 只做校验不关心具体类型，供 validate-only 接口使用
type Checker interface {
	Name() string
	FieldNames() []string
	Check(raw map[string]any) FieldErrors
}

// Check 实现 Checker
func (s Schema[T]) Check(raw map[string]any) FieldErrors {
	return Validate(s, raw).Errors
}

var registry = map[string]Checker{
	SignUpSchema.Name(): SignUpSchema,
	SignInSchema.Name(): SignInSchema,
	PostSchema.Name():   PostSchema,
}

// Lookup 通过名称查找 schema
func Lookup(name string) (Checker, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names 已注册的 schema 名称
func Names() []string {
	return []string{SignUpSchema.Name(), SignInSchema.Name(), PostSchema.Name()}
}
