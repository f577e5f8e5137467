package workflow

import (
	"context"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/validation"
)

// SignIn 登录表单的提交流程
// Idle -> Validating -> SigningIn -> VerifyingSession -> NavigatedHome | Idle
type SignIn struct {
	signIn *Mutation[client.Credentials, *client.Session]
	users  UserChecker
	deps   Deps
}

// NewSignIn 创建登录流程
func NewSignIn(auth Authenticator, users UserChecker, deps Deps) *SignIn {
	return &SignIn{
		signIn: NewMutation(auth.SignIn),
		users:  users,
		deps:   deps.withDefaults(),
	}
}

// Busy 提交按钮是否应处于加载状态
func (w *SignIn) Busy() bool {
	return w.signIn.IsPending() || w.users.IsLoading()
}

// Run 处理一次提交。
// 错误为 *UnexpectedError（外部调用失败，未发提示）或提交锁冲突（errors.Is ErrSubmissionInFlight）
func (w *SignIn) Run(ctx context.Context, raw map[string]any) (Result, error) {
	r := newRun(ctx, formSignIn, w.deps)

	in, ok := validate(r, validation.SignInSchema, raw)
	if !ok {
		return r.finish(), nil
	}

	release, err := r.acquire(guardKey(in.Email))
	if err != nil {
		return r.finish(), err
	}
	defer release()

	err = signInAndVerify(r, w.signIn, w.users, client.Credentials{Email: in.Email, Password: in.Password}, MsgLoginFailed)
	return r.finish(), err
}

// signInAndVerify 登录与注册共用的后半段
func signInAndVerify(r *run, signIn *Mutation[client.Credentials, *client.Session], users UserChecker, creds client.Credentials, unverifiedMsg string) error {
	sess, err := step(r, StateSigningIn, func(ctx context.Context) (*client.Session, error) {
		return signIn.Do(ctx, creds)
	})
	if err != nil {
		return err
	}
	if sess == nil {
		r.fail(OutcomeSignInRejected, MsgSignInFailed)
		r.deps.Navigator.Navigate(RouteSignIn)
		return nil
	}

	verified, err := step(r, StateVerifyingSession, users.CheckAuthUser)
	if err != nil {
		return err
	}
	if !verified {
		r.fail(OutcomeSessionUnverified, unverifiedMsg)
		return nil
	}

	r.deps.Form.Reset()
	r.deps.Navigator.Navigate(RouteHome)
	r.res.Outcome = OutcomeNavigatedHome
	r.enter(StateNavigatedHome)
	return nil
}
