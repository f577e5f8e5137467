package workflow

import (
	"context"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/validation"
)

// SignUp 注册表单的提交流程
// Idle -> Validating -> CreatingAccount -> SigningIn -> VerifyingSession -> NavigatedHome | Idle
type SignUp struct {
	createAccount *Mutation[client.NewAccount, *client.User]
	signIn        *Mutation[client.Credentials, *client.Session]
	users         UserChecker
	deps          Deps
}

// SignUpBackend 注册流程需要的后端能力
type SignUpBackend interface {
	AccountCreator
	Authenticator
}

// NewSignUp 创建注册流程
func NewSignUp(backend SignUpBackend, users UserChecker, deps Deps) *SignUp {
	return &SignUp{
		createAccount: NewMutation(backend.CreateAccount),
		signIn:        NewMutation(backend.SignIn),
		users:         users,
		deps:          deps.withDefaults(),
	}
}

// Busy 提交按钮是否应处于加载状态
func (w *SignUp) Busy() bool {
	return w.createAccount.IsPending() || w.signIn.IsPending() || w.users.IsLoading()
}

// Run 处理一次提交，错误语义同 SignIn.Run
func (w *SignUp) Run(ctx context.Context, raw map[string]any) (Result, error) {
	r := newRun(ctx, formSignUp, w.deps)

	in, ok := validate(r, validation.SignUpSchema, raw)
	if !ok {
		return r.finish(), nil
	}

	release, err := r.acquire(guardKey(in.Email))
	if err != nil {
		return r.finish(), err
	}
	defer release()

	account, err := step(r, StateCreatingAccount, func(ctx context.Context) (*client.User, error) {
		return w.createAccount.Do(ctx, client.NewAccount{
			Name:     in.Name,
			Username: in.Username,
			Email:    in.Email,
			Password: in.Password,
		})
	})
	if err != nil {
		return r.finish(), err
	}
	if account == nil {
		r.fail(OutcomeAccountRejected, MsgSignUpFailed)
		return r.finish(), nil
	}

	creds := in.Credentials()
	err = signInAndVerify(r, w.signIn, w.users, client.Credentials{Email: creds.Email, Password: creds.Password}, MsgSignUpUnverified)
	return r.finish(), err
}
