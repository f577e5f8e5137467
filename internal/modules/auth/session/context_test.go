package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapgram/internal/modules/auth/client"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/querycache"
	"snapgram/internal/pkg/querykeys"
)

type fakeSource struct {
	mu    sync.Mutex
	user  *client.User
	err   error
	calls int
	// block 非 nil 时 CurrentUser 等待它关闭
	block chan struct{}
}

func (f *fakeSource) CurrentUser(ctx context.Context) (*client.User, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCheckAuthUser(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{user: &client.User{ID: "u1", Email: "a@b.com"}}
	jar := client.NewMemoryJar("tok-1")
	cache := querycache.NewMemoryCache(nil, log.Discard())
	auth := New(src, jar, Options{Cache: cache, TTL: time.Minute, Logger: log.Discard()})

	ok, err := auth.CheckAuthUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, auth.IsAuthenticated())
	assert.Equal(t, "u1", auth.User().ID)
	assert.False(t, auth.IsLoading())

	_, hit, _ := cache.Get(ctx, querykeys.Key(querykeys.GetCurrentUser, querycache.HashToken("tok-1")))
	assert.True(t, hit)

	cached, hit := auth.CachedUser(ctx)
	require.True(t, hit)
	assert.Equal(t, "u1", cached.ID)

	// 每次都向后端确认，不以缓存作为登录依据
	ok, err = auth.CheckAuthUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, src.callCount())

	auth.Invalidate(ctx)
	_, hit = auth.CachedUser(ctx)
	assert.False(t, hit)
}

func TestCheckAuthUserAfterRevoke(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{user: &client.User{ID: "u1", Email: "a@b.com"}}
	cache := querycache.NewMemoryCache(nil, log.Discard())
	auth := New(src, client.NewMemoryJar("tok-1"), Options{Cache: cache, TTL: time.Minute, Logger: log.Discard()})

	ok, err := auth.CheckAuthUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, cache.Len())

	// 会话在别处被撤销
	src.mu.Lock()
	src.user = nil
	src.mu.Unlock()

	ok, err = auth.CheckAuthUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, auth.IsAuthenticated())
	assert.Zero(t, cache.Len(), "失效会话的缓存被删除")
}

func TestCheckAuthUserUnauthenticated(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	cache := querycache.NewMemoryCache(nil, log.Discard())
	auth := New(src, client.NewMemoryJar("tok"), Options{Cache: cache, Logger: log.Discard()})
	auth.setUser(&client.User{ID: "stale"})

	ok, err := auth.CheckAuthUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, auth.User())
	assert.Equal(t, 0, cache.Len(), "未认证结果不缓存")
}

func TestCheckAuthUserError(t *testing.T) {
	src := &fakeSource{err: errors.New("kratos down")}
	auth := New(src, client.NewMemoryJar(""), Options{Logger: log.Discard()})

	ok, err := auth.CheckAuthUser(context.Background())
	assert.False(t, ok)
	assert.EqualError(t, err, "kratos down")
	assert.False(t, auth.IsLoading())
}

func TestIsLoadingDuringCheck(t *testing.T) {
	src := &fakeSource{user: &client.User{ID: "u1"}, block: make(chan struct{})}
	auth := New(src, client.NewMemoryJar(""), Options{Logger: log.Discard()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = auth.CheckAuthUser(context.Background())
	}()

	assert.Eventually(t, auth.IsLoading, time.Second, time.Millisecond)
	close(src.block)
	<-done
	assert.False(t, auth.IsLoading())
}

func TestUserReturnsCopyAndReset(t *testing.T) {
	auth := New(&fakeSource{}, nil, Options{Logger: log.Discard()})
	auth.setUser(&client.User{ID: "u1"})

	u := auth.User()
	u.ID = "mutated"
	assert.Equal(t, "u1", auth.User().ID)

	auth.Reset()
	assert.False(t, auth.IsAuthenticated())
}
