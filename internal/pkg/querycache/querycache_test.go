package querycache

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/querykeys"
	"snapgram/internal/pkg/xerrors"
)

type user struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewCacheMetrics("test", reg)
	c := NewMemoryCache(m, log.Discard())

	key := querykeys.Key(querykeys.GetCurrentUser, "abc")
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, c, key, user{ID: "u1", Email: "a@b.com"}, time.Minute))
	got, ok, err := GetJSON[user](ctx, c, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues(backendMemory, "getCurrentUser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses.WithLabelValues(backendMemory, "getCurrentUser")))

	require.NoError(t, c.Delete(ctx, key))
	_, ok, _ = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(nil, log.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "k2", []byte("v"), time.Hour))

	now = now.Add(2 * time.Second)
	_, ok, _ := c.Get(ctx, "k1")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k3", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheRejectsNonPositiveTTL(t *testing.T) {
	c := NewMemoryCache(nil, log.Discard())
	err := c.Set(context.Background(), "k", []byte("v"), 0)
	assert.Equal(t, xerrors.CodeInvalidParams, xerrors.CodeOf(err))
}

func TestMemoryCacheSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(nil, log.Discard())
	require.Error(t, c.StartSweeper("not a schedule"))
	require.NoError(t, c.StartSweeper("@every 1h"))
	require.NoError(t, c.StartSweeper("@every 1h"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCacheMetrics("test", reg)
	c := NewRedisCache(rdb, m, log.Discard())

	key := querykeys.Key(querykeys.GetUserByID, "u1")
	require.NoError(t, SetJSON(ctx, c, key, user{ID: "u1"}, time.Minute))
	got, ok, err := GetJSON[user](ctx, c, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues(backendRedis, "getUserByID")))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("{}"), time.Minute))
	require.NoError(t, c.Delete(ctx, key))
	assert.False(t, mr.Exists(key))
}

func TestRedisCacheDecodeError(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	c := NewRedisCache(rdb, nil, log.Discard())

	require.NoError(t, c.Set(ctx, "k", []byte("not json"), time.Minute))
	_, _, err := GetJSON[user](ctx, c, "k")
	assert.Equal(t, xerrors.CodeCacheError, xerrors.CodeOf(err))
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewRedisCache(rdb, nil, log.Discard())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Equal(t, xerrors.CodeCacheError, xerrors.CodeOf(err))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.Equal(t, xerrors.CodeCacheError, xerrors.CodeOf(err))
}

func TestRedisGuard(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	g := NewRedisGuard(rdb, 10*time.Second, log.Discard())

	release, ok, err := g.Acquire(ctx, "a@b.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Acquire(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = g.Acquire(ctx, "c@d.com")
	assert.True(t, ok)

	release()
	assert.False(t, mr.Exists(GuardPrefix+"a@b.com"))

	_, ok, _ = g.Acquire(ctx, "a@b.com")
	assert.True(t, ok)
}

func TestRedisGuardExpiredLockNotStolen(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	g := NewRedisGuard(rdb, time.Second, log.Discard())

	staleRelease, ok, _ := g.Acquire(ctx, "k")
	require.True(t, ok)
	mr.FastForward(2 * time.Second)

	_, ok, _ = g.Acquire(ctx, "k")
	require.True(t, ok)

	// 过期后的旧持有者不能删除新锁
	staleRelease()
	assert.True(t, mr.Exists(GuardPrefix+"k"))
}

func TestRedisGuardReleaseFailureLogged(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	var buf bytes.Buffer
	g := NewRedisGuard(rdb, 10*time.Second, log.NewLogger(slog.NewJSONHandler(&buf, nil)))

	release, ok, err := g.Acquire(ctx, "a@b.com")
	require.NoError(t, err)
	require.True(t, ok)

	mr.Close()
	release()

	assert.Contains(t, buf.String(), "redis guard release failed")
	assert.Contains(t, buf.String(), GuardPrefix+"a@b.com")
}

func TestRedisGuardConcurrent(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	g := NewRedisGuard(rdb, 10*time.Second, log.Discard())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := g.Acquire(ctx, "same"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
