package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLocalGuard(t *testing.T) {
	g := NewLocalGuard()
	release, ok, err := g.Acquire(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = g.Acquire(context.Background(), "a@b.com")
	assert.False(t, ok)

	release()
	release()
	assert.Equal(t, 0, g.Held())

	_, ok, _ = g.Acquire(context.Background(), "a@b.com")
	assert.True(t, ok)
}

func TestLocalGuardConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewLocalGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := g.Acquire(context.Background(), "k"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestDefaultGuardSharedBySignInAndSignUp(t *testing.T) {
	h := newHarness(validSignUpRaw())
	h.deps.Guard = nil

	release, ok, err := defaultGuard.Acquire(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = NewSignUp(h.backend, h.users, h.deps).Run(context.Background(), validSignUpRaw())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = NewSignIn(h.backend, h.users, h.deps).Run(context.Background(), map[string]any{"email": "A@b.com", "password": "abcdefgh"})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Zero(t, h.ev.count("createAccount"))
	assert.Zero(t, h.ev.count("signIn"))

	release()
	_, err = NewSignIn(h.backend, h.users, h.deps).Run(context.Background(), validSignInRaw())
	assert.NoError(t, err)
	assert.Equal(t, 0, defaultGuard.Held())
}

func TestMutationPending(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	m := NewMutation(func(ctx context.Context, in int) (int, error) {
		close(entered)
		<-gate
		return in * 2, nil
	})
	assert.False(t, m.IsPending())

	done := make(chan int)
	go func() {
		out, _ := m.Do(context.Background(), 21)
		done <- out
	}()
	<-entered
	assert.True(t, m.IsPending())
	close(gate)
	assert.Equal(t, 42, <-done)
	assert.False(t, m.IsPending())
}

func TestStateAndOutcomeNames(t *testing.T) {
	assert.Equal(t, "verifying_session", StateVerifyingSession.String())
	assert.Equal(t, "sign_in_rejected", OutcomeSignInRejected.String())
	text, _ := OutcomeBusy.MarshalText()
	assert.Equal(t, "busy", string(text))
}
