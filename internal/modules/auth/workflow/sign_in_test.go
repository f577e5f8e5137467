package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/xerrors"
)

func TestSignInNavigatesHome(t *testing.T) {
	h := newHarness(validSignInRaw())
	reg := prometheus.NewRegistry()
	h.deps.Metrics = metrics.NewWorkflowMetrics("test", reg)
	w := NewSignIn(h.backend, h.users, h.deps)

	res, err := w.Run(context.Background(), validSignInRaw())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNavigatedHome, res.Outcome)
	assert.Equal(t, StateNavigatedHome, res.State)
	assert.Equal(t, []State{StateIdle, StateValidating, StateSigningIn, StateVerifyingSession, StateNavigatedHome}, res.Trail)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, []string{"signIn", "checkCurrentUser", "navigate:/"}, h.ev.list())
	assert.Equal(t, []string{RouteHome}, h.routes)
	assert.Empty(t, h.toasts.Toasts())
	assert.Equal(t, 1, h.form.Resets())
	assert.Equal(t, "", h.form.Values()["email"])
	assert.Equal(t, "a@b.com", h.backend.lastCreds.Email)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.deps.Metrics.Runs.WithLabelValues("sign-in", "navigated_home")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.deps.Metrics.InFlight.WithLabelValues("sign-in")))
}

func TestSignInRejected(t *testing.T) {
	h := newHarness(validSignInRaw())
	h.backend.session = nil
	w := NewSignIn(h.backend, h.users, h.deps)

	res, err := w.Run(context.Background(), validSignInRaw())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSignInRejected, res.Outcome)
	assert.Equal(t, StateIdle, res.State)
	assert.Equal(t, []string{MsgSignInFailed}, h.toasts.Titles())
	assert.Equal(t, []string{RouteSignIn}, h.routes)
	assert.Equal(t, 0, h.ev.count("checkCurrentUser"))
	assert.Equal(t, []string{"signIn", "notify", "navigate:/sign-in"}, h.ev.list())
	assert.Equal(t, 0, h.form.Resets())
}

func TestSignInSessionUnverified(t *testing.T) {
	h := newHarness(validSignInRaw())
	h.users.verified = false
	w := NewSignIn(h.backend, h.users, h.deps)

	res, err := w.Run(context.Background(), validSignInRaw())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSessionUnverified, res.Outcome)
	assert.Equal(t, []string{MsgLoginFailed}, h.toasts.Titles())
	assert.Empty(t, h.routes)
	assert.Equal(t, 0, h.form.Resets())
}

func TestSignInInvalidNeverCallsBackend(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]any
		fields []string
	}{
		{"密码过短", map[string]any{"email": "a@b.com", "password": "short"}, []string{"password"}},
		{"邮箱错误", map[string]any{"email": "ab.com", "password": "abcdefgh"}, []string{"email"}},
		{"空表单", map[string]any{}, []string{"email", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.raw)
			w := NewSignIn(h.backend, h.users, h.deps)

			res, err := w.Run(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, OutcomeInvalid, res.Outcome)
			assert.Equal(t, StateIdle, res.State)
			assert.Equal(t, []State{StateIdle, StateValidating, StateIdle}, res.Trail)

			keys := make([]string, 0, len(res.FieldErrors))
			for k := range res.FieldErrors {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.fields, keys)
			assert.Empty(t, h.ev.list())
		})
	}
}

func TestSignInUnexpectedError(t *testing.T) {
	t.Run("登录调用失败", func(t *testing.T) {
		h := newHarness(validSignInRaw())
		h.backend.signInErr = xerrors.FromCode(xerrors.CodeKratosError)
		w := NewSignIn(h.backend, h.users, h.deps)

		res, err := w.Run(context.Background(), validSignInRaw())
		var ue *UnexpectedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, StateSigningIn, ue.Step)
		assert.Equal(t, xerrors.CodeKratosError, ue.Err.Code)
		assert.Equal(t, res.RunID, ue.Err.Context.RunID)

		assert.Equal(t, OutcomeUnexpected, res.Outcome)
		assert.Equal(t, StateIdle, res.State)
		assert.Empty(t, h.toasts.Toasts())
		assert.Empty(t, h.routes)
		assert.Equal(t, 0, h.ev.count("checkCurrentUser"))
	})

	t.Run("确认会话失败", func(t *testing.T) {
		h := newHarness(validSignInRaw())
		h.users.err = errors.New("whoami: connection reset")
		w := NewSignIn(h.backend, h.users, h.deps)

		res, err := w.Run(context.Background(), validSignInRaw())
		var ue *UnexpectedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, StateVerifyingSession, ue.Step)
		assert.Equal(t, xerrors.CodeExternalServiceError, ue.Err.Code)
		assert.Equal(t, OutcomeUnexpected, res.Outcome)
		assert.Empty(t, h.toasts.Toasts())
	})

	t.Run("ctx 已取消", func(t *testing.T) {
		h := newHarness(validSignInRaw())
		w := NewSignIn(h.backend, h.users, h.deps)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := w.Run(ctx, validSignInRaw())
		var ue *UnexpectedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, xerrors.CodeOperationCanceled, ue.Err.Code)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, OutcomeUnexpected, res.Outcome)
		assert.Empty(t, h.ev.list())
	})
}

func TestSignInGuard(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(validSignInRaw())
	h.backend.gate = make(chan struct{})
	h.backend.entered = make(chan struct{}, 1)
	guard := NewLocalGuard()
	h.deps.Guard = guard
	w := NewSignIn(h.backend, h.users, h.deps)

	var wg sync.WaitGroup
	var first Result
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = w.Run(context.Background(), validSignInRaw())
	}()

	<-h.backend.entered
	assert.True(t, w.Busy())

	// 同一邮箱（大小写不敏感）的第二次提交被拒绝
	raw := validSignInRaw()
	raw["email"] = "A@B.com"
	res, err := w.Run(context.Background(), raw)
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, xerrors.CodeSubmissionInFlight, xerrors.CodeOf(err))
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Equal(t, 1, h.ev.count("signIn"))

	close(h.backend.gate)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, OutcomeNavigatedHome, first.Outcome)
	assert.False(t, w.Busy())
	assert.Equal(t, 0, guard.Held())
}

func TestSignInBusyReflectsAuthLoading(t *testing.T) {
	h := newHarness(nil)
	w := NewSignIn(h.backend, h.users, h.deps)
	assert.False(t, w.Busy())
	h.users.loading = true
	assert.True(t, w.Busy())
}

func TestSignInCancelWhileSigningIn(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(validSignInRaw())
	h.backend.gate = make(chan struct{})
	h.backend.entered = make(chan struct{}, 1)
	w := NewSignIn(h.backend, h.users, h.deps)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := w.Run(ctx, validSignInRaw())
	var ue *UnexpectedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, xerrors.CodeOperationCanceled, ue.Err.Code)
	assert.Equal(t, OutcomeUnexpected, res.Outcome)
	assert.Empty(t, h.toasts.Toasts())
	assert.Equal(t, 0, h.ev.count("checkCurrentUser"))
}
