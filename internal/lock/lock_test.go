package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func exclusive(t *testing.T, l Locker) {
	t.Helper()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "table-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestLocal(t *testing.T) {
	l := NewLocal()

	t.Run("mutual exclusion", func(t *testing.T) {
		exclusive(t, l)
		assert.Empty(t, l.locks, "idle keys are dropped")
	})

	t.Run("keys are independent", func(t *testing.T) {
		r1, err := l.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer r1()
		r2, err := l.Lock(context.Background(), "b")
		require.NoError(t, err)
		r2()
	})

	t.Run("context cancels the wait", func(t *testing.T) {
		release, err := l.Lock(context.Background(), "busy")
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.Lock(ctx, "busy")
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("double release is harmless", func(t *testing.T) {
		release, err := l.Lock(context.Background(), "twice")
		require.NoError(t, err)
		release()
		release()
		again, err := l.Lock(context.Background(), "twice")
		require.NoError(t, err)
		again()
	})
}

func newRedisLocker(t *testing.T, cfg RedisConfig) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zerolog.Nop()
	return NewRedis(client, cfg, &logger), mr
}

func TestRedis(t *testing.T) {
	t.Run("mutual exclusion", func(t *testing.T) {
		l, mr := newRedisLocker(t, RedisConfig{RetryPerSecond: 500})
		exclusive(t, l)
		assert.False(t, mr.Exists("tablebook:lock:table-1"))
	})

	t.Run("busy key times out", func(t *testing.T) {
		l, mr := newRedisLocker(t, RedisConfig{Wait: 50 * time.Millisecond})
		require.NoError(t, mr.Set("tablebook:lock:t", "someone-else"))

		_, err := l.Lock(context.Background(), "t")
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("release keeps a foreign token", func(t *testing.T) {
		l, mr := newRedisLocker(t, RedisConfig{})
		release, err := l.Lock(context.Background(), "t")
		require.NoError(t, err)
		assert.Greater(t, mr.TTL("tablebook:lock:t"), time.Duration(0))

		require.NoError(t, mr.Set("tablebook:lock:t", "stolen"))
		release()
		got, err := mr.Get("tablebook:lock:t")
		require.NoError(t, err)
		assert.Equal(t, "stolen", got)
	})

	t.Run("unreachable server", func(t *testing.T) {
		l, mr := newRedisLocker(t, RedisConfig{})
		mr.Close()
		_, err := l.Lock(context.Background(), "t")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotAcquired)
		assert.Error(t, l.Ping(context.Background()))
	})
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailover(t *testing.T) {
	primary := new(mockLocker)
	fallback := new(mockLocker)
	logger := zerolog.Nop()
	l := NewFailover(primary, fallback, &logger)
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Lock", ctx, "a").Return(noop, nil).Once()
		_, err := l.Lock(ctx, "a")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "Lock", ctx, "a")
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Lock", ctx, "b").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Lock", ctx, "b").Return(noop, nil).Once()
		_, err := l.Lock(ctx, "b")
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
	})

	t.Run("BusyIsNotFailedOver", func(t *testing.T) {
		primary.On("Lock", ctx, "c").Return(nil, ErrNotAcquired).Once()
		_, err := l.Lock(ctx, "c")
		assert.ErrorIs(t, err, ErrNotAcquired)
		fallback.AssertNotCalled(t, "Lock", ctx, "c")
	})
}
