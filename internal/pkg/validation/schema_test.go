package validation

import (
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapgram/internal/pkg/xerrors"
)

func validSignUp() map[string]any {
	return map[string]any{
		"name":     "Al",
		"username": "alalalal",
		"email":    "a@b.com",
		"password": "abcdefgh",
	}
}

func TestSignUpSchema(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   FieldErrors
	}{
		{
			name:   "边界值全部通过",
			mutate: func(map[string]any) {},
			want:   nil,
		},
		{
			name:   "用户名过短只报用户名",
			mutate: func(m map[string]any) { m["username"] = "short" },
			want:   FieldErrors{"username": "Username must be at least 8 characters"},
		},
		{
			name:   "名字过短",
			mutate: func(m map[string]any) { m["name"] = "A" },
			want:   FieldErrors{"name": "Name must be at least 2 characters"},
		},
		{
			name:   "邮箱格式错误",
			mutate: func(m map[string]any) { m["email"] = "not-an-email" },
			want:   FieldErrors{"email": "Invalid email"},
		},
		{
			name: "多个字段同时失败互不影响",
			mutate: func(m map[string]any) {
				m["name"] = ""
				m["password"] = "1234567"
			},
			want: FieldErrors{
				"name":     "Name must be at least 2 characters",
				"password": "Password must be at least 8 characters",
			},
		},
		{
			name:   "缺少字段",
			mutate: func(m map[string]any) { delete(m, "email") },
			want:   FieldErrors{"email": MsgRequired},
		},
		{
			name:   "类型错误",
			mutate: func(m map[string]any) { m["password"] = float64(12345678) },
			want:   FieldErrors{"password": "Expected string, received number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validSignUp()
			tt.mutate(raw)

			res := Validate(SignUpSchema, raw)
			if tt.want == nil {
				require.True(t, res.OK(), "unexpected errors: %v", res.Errors)
				assert.Equal(t, SignUpInput{Name: "Al", Username: "alalalal", Email: "a@b.com", Password: "abcdefgh"}, res.Value)
				assert.Nil(t, res.Err())
				return
			}
			assert.False(t, res.OK())
			assert.Equal(t, tt.want, res.Errors)
			assert.Equal(t, SignUpInput{}, res.Value)
		})
	}
}

func TestLengthCountsUTF16Units(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		ok    bool
	}{
		{"单个 emoji 满足名字最短 2", "name", "😀", true},
		{"四个 emoji 满足用户名最短 8", "username", "😀😀😀😀", true},
		{"单个汉字不足 2", "name", "中", false},
		{"七个 ASCII 不足 8", "username", "abcdefg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validSignUp()
			raw[tt.field] = tt.value
			res := Validate(SignUpSchema, raw)
			_, failed := res.Errors[tt.field]
			assert.Equal(t, tt.ok, !failed, "errors: %v", res.Errors)
		})
	}

	res := Validate(PostSchema, map[string]any{
		"caption":  strings.Repeat("😀", 1100) + "a",
		"location": "Oslo",
		"tags":     "",
	})
	assert.Equal(t, "Must be less than 2200 characters...", res.Errors["caption"])
}

func TestEmailFormat(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"a@b.com", true},
		{"first.last+tag@mail.example.co", true},
		{"O'Brien@b.io", true},
		{`"a b"@b.com`, false},
		{".a@b.com", false},
		{"a..b@b.com", false},
		{"a.@b.com", false},
		{"a@b", false},
		{"a@b.c", false},
		{"a@-b.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			raw := validSignUp()
			raw["email"] = tt.email
			res := Validate(SignUpSchema, raw)
			_, failed := res.Errors["email"]
			assert.Equal(t, tt.ok, !failed)
		})
	}
}

func TestSignInSchema(t *testing.T) {
	res := Validate(SignInSchema, map[string]any{"email": "a@b.com", "password": "abcdefgh"})
	require.True(t, res.OK())
	assert.Equal(t, SignInInput{Email: "a@b.com", Password: "abcdefgh"}, res.Value)

	res = Validate(SignInSchema, map[string]any{"email": true, "password": nil})
	assert.Equal(t, FieldErrors{
		"email":    "Expected string, received boolean",
		"password": "Expected string, received null",
	}, res.Errors)
	assert.Equal(t, []string{"email", "password"}, res.Fields())
}

func TestPostSchema(t *testing.T) {
	file := []any{"photo.png"}
	res := Validate(PostSchema, map[string]any{
		"caption":  "sunset",
		"location": "Oslo",
		"tags":     "sky,sea",
		"file":     file,
	})
	require.True(t, res.OK())
	assert.Equal(t, "sunset", res.Value.Caption)
	assert.Equal(t, file, res.Value.File)

	res = Validate(PostSchema, map[string]any{
		"caption":  strings.Repeat("a", 2201),
		"location": "X",
		"tags":     []any{"a"},
	})
	assert.Equal(t, FieldErrors{
		"caption":  "Must be less than 2200 characters...",
		"location": "Must be more than 2 characters",
		"tags":     "Expected string, received array",
	}, res.Errors)

	res = Validate(PostSchema, map[string]any{
		"caption":  "four",
		"location": strings.Repeat("b", 101),
		"tags":     "",
	})
	assert.Equal(t, "Must be 5 or more characters...", res.Errors["caption"])
	assert.Equal(t, "Must be less than 100 characters", res.Errors["location"])
	assert.NotContains(t, res.Errors, "file")
}

func TestLengthCountsRunes(t *testing.T) {
	raw := validSignUp()
	raw["name"] = "李雷"
	raw["username"] = "用户名用户名用户"
	assert.True(t, Validate(SignUpSchema, raw).OK())
}

func TestValidateIsIdempotent(t *testing.T) {
	raw := validSignUp()
	raw["username"] = "short"

	first := Validate(SignUpSchema, raw)
	second := Validate(SignUpSchema, raw)
	assert.Equal(t, first, second)
	assert.Equal(t, "short", raw["username"])
}

func TestResultErr(t *testing.T) {
	raw := validSignUp()
	raw["email"] = "x"
	raw["username"] = "y"

	appErr := Validate(SignUpSchema, raw).Err()
	require.NotNil(t, appErr)
	assert.Equal(t, xerrors.CodeInvalidParams, appErr.Code)
	assert.Equal(t, "username,email", appErr.Context.Metadata["field"])
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		c, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
	_, ok := Lookup("profile")
	assert.False(t, ok)

	c, _ := Lookup("sign-in")
	assert.Equal(t, FieldErrors{"email": MsgRequired, "password": MsgRequired}, c.Check(map[string]any{}))
}

func TestEchoValidator(t *testing.T) {
	type param struct {
		Schema string `validate:"required,oneof=sign-up sign-in post"`
	}
	v := NewEchoValidator()
	assert.NoError(t, v.Validate(param{Schema: "post"}))

	err := v.Validate(param{Schema: "profile"})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 400, he.Code)
	assert.Equal(t, FieldErrors{"schema": "Must be one of: sign-up, sign-in, post"}, he.Message)
}
