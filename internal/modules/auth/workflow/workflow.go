// Package workflow 登录、注册表单的提交流程
//
// 一次运行（run）严格按顺序执行：校验 -> 创建账户（仅注册）-> 登录 -> 确认会话 -> 跳转或提示。
// 任一步骤不会与同一次运行的其它步骤并发执行。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/notify"
	"snapgram/internal/pkg/validation"
	"snapgram/internal/pkg/xerrors"
)

// 路由
const (
	RouteHome   = "/"
	RouteSignIn = "/sign-in"
)

// 提示文案
const (
	MsgSignInFailed     = "Sign in failed. Please try again"
	MsgLoginFailed      = "Login failed. Please try again."
	MsgSignUpFailed     = "Uh oh, something went wrong! Please try again"
	MsgSignUpUnverified = "Something went wrong. Please try again."
)

const (
	formSignIn = "sign-in"
	formSignUp = "sign-up"
)

// State 运行所处的步骤
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCreatingAccount
	StateSigningIn
	StateVerifyingSession
	StateNavigatedHome
)

var stateNames = [...]string{"idle", "validating", "creating_account", "signing_in", "verifying_session", "navigated_home"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome 一次运行的结果
type Outcome int

const (
	// OutcomeInvalid 表单校验失败，字段错误见 Result.FieldErrors
	OutcomeInvalid Outcome = iota
	OutcomeNavigatedHome
	OutcomeAccountRejected
	OutcomeSignInRejected
	OutcomeSessionUnverified
	// OutcomeUnexpected 外部调用出错，不发提示
	OutcomeUnexpected
	// OutcomeBusy 同一提交主体已有运行在进行
	OutcomeBusy
)

var outcomeNames = [...]string{"invalid", "navigated_home", "account_rejected", "sign_in_rejected", "session_unverified", "unexpected", "busy"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result 一次运行的记录
type Result struct {
	RunID       string                 `json:"run_id"`
	Outcome     Outcome                `json:"outcome"`
	State       State                  `json:"state"`
	Trail       []State                `json:"trail"`
	FieldErrors validation.FieldErrors `json:"field_errors,omitempty"`
}

// ErrSubmissionInFlight 同一主体的提交尚未结束
var ErrSubmissionInFlight = errors.New("workflow: submission already in flight")

// UnexpectedError 外部协作方失败。工作流本身不发提示，由调用方决定如何告知用户
type UnexpectedError struct {
	Step State
	Err  *xerrors.AppError
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("workflow: unexpected failure while %s: %v", e.Step, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// AccountCreator 创建账户，被拒绝时返回 (nil, nil)
type AccountCreator interface {
	CreateAccount(ctx context.Context, in client.NewAccount) (*client.User, error)
}

// Authenticator 登录，凭据无效时返回 (nil, nil)
type Authenticator interface {
	SignIn(ctx context.Context, in client.Credentials) (*client.Session, error)
}

// UserChecker 确认当前用户并更新 auth context
type UserChecker interface {
	CheckAuthUser(ctx context.Context) (bool, error)
	IsLoading() bool
}

// Navigator 客户端路由跳转
type Navigator interface {
	Navigate(route string)
}

// Form 表单状态
type Form interface {
	Reset()
}

// Deps 每个工作流共享的协作方
type Deps struct {
	Notifier  notify.Notifier
	Navigator Navigator
	Form      Form
	// Guard 为空时使用包内共享的 LocalGuard
	Guard   Guard
	Logger  log.Logger
	Metrics *metrics.WorkflowMetrics
}

// defaultGuard 未注入 Guard 的登录与注册共用
var defaultGuard = NewLocalGuard()

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Func(func(context.Context, notify.Toast) {})
	}
	if d.Navigator == nil {
		d.Navigator = NavigatorFunc(func(string) {})
	}
	if d.Form == nil {
		d.Form = &MapForm{}
	}
	if d.Guard == nil {
		d.Guard = defaultGuard
	}
	if d.Logger == nil {
		d.Logger = log.GetLogger()
	}
	return d
}

// NavigatorFunc 把函数适配为 Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// guardKey 同一邮箱同时只能有一个提交，登录与注册使用同一个 Guard 时互斥
func guardKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
