// File: internal/pkg/i18n/i18n.go
// Package i18n 响应信封 message 的多语言支持。
// 表单提示与字段错误是固定英文文案，不经过这里。
package i18n

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snapgram/internal/pkg/ctxkey"
)

var (
	// DefaultLanguage 默认英文
	DefaultLanguage = language.English
	// SupportedLanguages 第一项为匹配失败时的回退
	SupportedLanguages = []language.Tag{
		language.English,
		language.Chinese,
	}
	matcher = language.NewMatcher(SupportedLanguages)
)

// WithLanguage 在 context 中设置语言偏好
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return ctxkey.WithValue(ctx, ctxkey.Language, lang)
}

// GetLanguage 从 context 中获取语言偏好
func GetLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(ctxkey.Language).(language.Tag); ok {
		return lang
	}
	return DefaultLanguage
}

// ParseAcceptLanguage 解析 Accept-Language 头部
// 例如: "zh-CN,zh;q=0.9,en;q=0.8"
func ParseAcceptLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	return supported(tags...)
}

// ParseLanguageCode 从语言代码解析，支持 "zh", "zh-CN", "en", "en-US" 等
func ParseLanguageCode(code string) language.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return supported(tag)
}

// supported 匹配结果可能带 -u-rg 扩展，归一到 SupportedLanguages 中的 tag
func supported(tags ...language.Tag) language.Tag {
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLanguage
	}
	return SupportedLanguages[index]
}

// Printer 返回指定语言的打印器
func Printer(lang language.Tag) *message.Printer {
	return message.NewPrinter(lang)
}

// GetLanguageCode 获取语言代码 (en, zh)
func GetLanguageCode(lang language.Tag) string {
	base, _ := lang.Base()
	return base.String()
}
