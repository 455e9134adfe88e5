// Package lock serializes work per key. Keys are independent: holding one never blocks another.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when a distributed lock stays busy for every attempt.
var ErrNotAcquired = errors.New("lock: not acquired")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process per-key mutex. Entries are dropped once nobody waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

type LockClient interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type RedisLockerConfig struct {
	TTL        time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// RedisLocker holds locks across processes. Each acquisition gets its own token so a holder whose
// TTL expired can never release a successor's lock.
type RedisLocker struct {
	client LockClient
	cfg    RedisLockerConfig
}

func NewRedisLocker(client LockClient, cfg RedisLockerConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 30
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, cfg: cfg}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	lockKey := "lock:" + key
	token := uuid.New().String()

	for attempt := 0; attempt < l.cfg.Attempts; attempt++ {
		ok, err := l.client.AcquireLock(ctx, lockKey, token, l.cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// release with a fresh context so a cancelled request still frees the key
					releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = l.client.ReleaseLock(releaseCtx, lockKey, token)
				})
			}, nil
		}

		select {
		case <-time.After(l.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotAcquired, lockKey)
}
