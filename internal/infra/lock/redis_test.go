package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRedis implements the handful of commands RedisLock sends. Any other
// command panics on the nil embedded client.
type fakeRedis struct {
	redis.UniversalClient

	mu      sync.Mutex
	now     time.Time
	keys    map[string]fakeEntry
	setErr  error
	evalErr error
	pingErr error
}

type fakeEntry struct {
	value   string
	expires time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:  time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC),
		keys: make(map[string]fakeEntry),
	}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeRedis) get(key string) (string, bool) {
	e, ok := f.keys[key]
	if !ok || (!e.expires.IsZero() && !f.now.Before(e.expires)) {
		return "", false
	}
	return e.value, true
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.get(key); held {
		return redis.NewBoolResult(false, nil)
	}
	e := fakeEntry{value: value.(string)}
	if expiration > 0 {
		e.expires = f.now.Add(expiration)
	}
	f.keys[key] = e
	return redis.NewBoolResult(true, nil)
}

// EvalSha always misses so Script.Run falls back to Eval.
func (f *fakeRedis) EvalSha(_ context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("NOSCRIPT No matching script. Please use EVAL."))
}

// Eval runs the compare-and-delete release script.
func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if v, held := f.get(keys[0]); held && v == args[0] {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	if f.pingErr != nil {
		return redis.NewStatusResult("", f.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func TestRedisLock_ContentionAndRelease(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLock(rdb, zap.NewNop())
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second replica must not acquire a held lock")

	require.NoError(t, release(ctx))
	_, held := rdb.get("janitor:run")
	assert.False(t, held)

	_, ok, err = l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	rdb := newFakeRedis()
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewRedisLock(rdb, zap.New(core))
	ctx := context.Background()

	staleRelease, ok, err := l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rdb.advance(2 * time.Minute)
	_, ok, err = l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired key should be taken by the next run")

	require.NoError(t, staleRelease(ctx))
	assert.Equal(t, 1, logs.FilterMessage("lock expired before release").Len())

	_, ok, err = l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "the new holder's lock must survive the stale release")
}

func TestRedisLock_AcquireError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("dial tcp 127.0.0.1:6379: connection refused")
	l := NewRedisLock(rdb, zap.NewNop())

	release, ok, err := l.TryAcquire(context.Background(), "janitor:run", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire lock janitor:run")
	assert.False(t, ok)
	assert.Nil(t, release)
}

func TestRedisLock_ReleaseError(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLock(rdb, zap.NewNop())
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "janitor:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rdb.evalErr = errors.New("READONLY You can't write against a read only replica.")
	err = release(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release lock janitor:run")
}

func TestRedisLock_Ping(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLock(rdb, zap.NewNop())

	require.NoError(t, l.Ping(context.Background()))

	rdb.pingErr = errors.New("i/o timeout")
	assert.Error(t, l.Ping(context.Background()))
}
