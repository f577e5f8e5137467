package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

// 自定义 tag，长度与邮箱规则和前端表单保持一致
const (
	tagMinLen = "utf16min"
	tagMaxLen = "utf16max"
	tagEmail  = "formemail"
)

// emailPattern 前端邮箱规则；开头的点和连续的点另外检查（RE2 不支持前瞻）
var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9_'+\-.]*[A-Z0-9_+-]@([A-Z0-9][A-Z0-9\-]*\.)+[A-Z]{2,}$`)

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// validate 返回共享的 validator 实例（validator.Validate 并发安全，且会缓存解析过的 tag）
func validate() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(engine, tagMinLen, func(fl validator.FieldLevel) bool {
			return utf16Len(fl.Field().String()) >= paramInt(fl)
		})
		mustRegister(engine, tagMaxLen, func(fl validator.FieldLevel) bool {
			return utf16Len(fl.Field().String()) <= paramInt(fl)
		})
		mustRegister(engine, tagEmail, func(fl validator.FieldLevel) bool {
			return isEmail(fl.Field().String())
		})
	})
	return engine
}

// Rule 单条字段规则：validator tag + 失败时的提示
type Rule struct {
	Tag     string
	Message string
}

// Check 对单个值执行规则
func (r Rule) Check(value string) bool {
	return validate().Var(value, r.Tag) == nil
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

func paramInt(fl validator.FieldLevel) int {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("invalid length param %q", fl.Param()))
	}
	return n
}

// utf16Len 按 UTF-16 code unit 计长度，emoji 等增补平面字符算 2
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func isEmail(s string) bool {
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return emailPattern.MatchString(s)
}

// MinLen 长度（UTF-16 code unit）不少于 n
func MinLen(n int, message string) Rule {
	return Rule{Tag: fmt.Sprintf("%s=%d", tagMinLen, n), Message: message}
}

// MaxLen 长度不超过 n
func MaxLen(n int, message string) Rule {
	return Rule{Tag: fmt.Sprintf("%s=%d", tagMaxLen, n), Message: message}
}

// Email 必须是合法的邮箱地址
func Email(message string) Rule {
	return Rule{Tag: tagEmail, Message: message}
}

// Kind 字段期望的原始类型
type Kind int

const (
	KindString Kind = iota
	// KindAny 不做类型检查（例如上传文件）
	KindAny
)

// Field 一个表单字段及其规则，规则按顺序执行，第一条失败的规则决定错误消息
type Field struct {
	Name  string
	Kind  Kind
	Rules []Rule
}

// check 校验原始值，返回 (字符串值, 错误消息)，消息为空表示通过
func (f Field) check(raw map[string]any) (string, string) {
	v, ok := raw[f.Name]
	if f.Kind == KindAny {
		return "", ""
	}
	if !ok {
		return "", MsgRequired
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Sprintf(MsgExpectedString, typeName(v))
	}
	for _, rule := range f.Rules {
		if !rule.Check(s) {
			return s, rule.Message
		}
	}
	return s, ""
}

// typeName 给出与前端一致的 JSON 类型名
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
