// Package lock serializes booking writes per table so that the availability
// check and the write that depends on it are not interleaved.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Mode names accepted in configuration.
const (
	ModeNone  = "none"
	ModeLocal = "local"
	ModeRedis = "redis"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive access to a key until the returned release func is called.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Noop grants every lock immediately.
type Noop struct{}

func (Noop) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// Local is an in-process keyed mutex. It only protects writers sharing the process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}, nil
}

func (l *Local) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Failover takes locks from primary and falls back to a secondary locker when
// the primary is unreachable. A lock that is merely busy is not failed over.
type Failover struct {
	primary  Locker
	fallback Locker
	logger   zerolog.Logger
}

func NewFailover(primary, fallback Locker, logger *zerolog.Logger) *Failover {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   l.With().Str("component", "lock_failover").Logger(),
	}
}

func (f *Failover) Lock(ctx context.Context, key string) (func(), error) {
	release, err := f.primary.Lock(ctx, key)
	if err == nil {
		return release, nil
	}
	if errors.Is(err, ErrNotAcquired) || ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn().Err(err).Str("key", key).Msg("Primary locker failed, using fallback")
	return f.fallback.Lock(ctx, key)
}
