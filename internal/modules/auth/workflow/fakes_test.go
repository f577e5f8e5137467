package workflow

import (
	"context"
	"sync"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/notify"
)

// events 记录协作方的调用顺序
type events struct {
	mu  sync.Mutex
	seq []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.seq = append(e.seq, s)
	e.mu.Unlock()
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seq...)
}

func (e *events) count(s string) int {
	n := 0
	for _, v := range e.list() {
		if v == s {
			n++
		}
	}
	return n
}

type fakeBackend struct {
	ev *events

	account    *client.User
	accountErr error
	session    *client.Session
	signInErr  error
	panicOn    string

	// gate 非 nil 时 SignIn 在返回前等待
	gate    chan struct{}
	entered chan struct{}

	mu        sync.Mutex
	lastCreds client.Credentials
	lastNew   client.NewAccount
}

func (f *fakeBackend) CreateAccount(ctx context.Context, in client.NewAccount) (*client.User, error) {
	f.ev.add("createAccount")
	f.mu.Lock()
	f.lastNew = in
	f.mu.Unlock()
	if f.panicOn == "createAccount" {
		panic("boom")
	}
	return f.account, f.accountErr
}

func (f *fakeBackend) SignIn(ctx context.Context, in client.Credentials) (*client.Session, error) {
	f.ev.add("signIn")
	f.mu.Lock()
	f.lastCreds = in
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.session, f.signInErr
}

type fakeUsers struct {
	ev       *events
	verified bool
	err      error
	loading  bool
}

func (f *fakeUsers) CheckAuthUser(ctx context.Context) (bool, error) {
	f.ev.add("checkCurrentUser")
	return f.verified, f.err
}

func (f *fakeUsers) IsLoading() bool { return f.loading }

type harness struct {
	ev      *events
	backend *fakeBackend
	users   *fakeUsers
	toasts  *notify.Recorder
	routes  []string
	form    *MapForm
	deps    Deps
}

func newHarness(raw map[string]any) *harness {
	ev := &events{}
	h := &harness{
		ev: ev,
		backend: &fakeBackend{
			ev:      ev,
			account: &client.User{ID: "u1"},
			session: &client.Session{ID: "s1", Token: "tok", Active: true},
		},
		users:  &fakeUsers{ev: ev, verified: true},
		toasts: notify.NewRecorder(),
		form:   NewMapForm(raw),
	}
	var routeMu sync.Mutex
	h.deps = Deps{
		Notifier: notify.Multi{h.toasts, notify.Func(func(context.Context, notify.Toast) { ev.add("notify") })},
		Navigator: NavigatorFunc(func(route string) {
			routeMu.Lock()
			h.routes = append(h.routes, route)
			routeMu.Unlock()
			ev.add("navigate:" + route)
		}),
		Form:   h.form,
		Guard:  NewLocalGuard(),
		Logger: log.Discard(),
	}
	return h
}

func validSignInRaw() map[string]any {
	return map[string]any{"email": "a@b.com", "password": "abcdefgh"}
}

func validSignUpRaw() map[string]any {
	return map[string]any{"name": "Al", "username": "alalalal", "email": "a@b.com", "password": "abcdefgh"}
}
