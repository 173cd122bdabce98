package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serializes work per key. Unlock functions are safe to call more than once.
type Locker interface {
	// Lock blocks until key is held or ctx is done
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// TryLock takes key only if it is free right now
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// MemLocker is a per-key mutex for a single process
type MemLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewMemLocker returns an empty in-process locker
func NewMemLocker() *MemLocker {
	return &MemLocker{locks: make(map[string]*keyLock)}
}

func (m *MemLocker) ref(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (m *MemLocker) unref(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *MemLocker) unlocker(key string, kl *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			m.unref(key, kl)
		})
	}
}

// Lock implements Locker
func (m *MemLocker) Lock(ctx context.Context, key string) (func(), error) {
	kl := m.ref(key)
	select {
	case kl.sem <- struct{}{}:
		return m.unlocker(key, kl), nil
	case <-ctx.Done():
		m.unref(key, kl)
		return nil, ctx.Err()
	}
}

// TryLock implements Locker
func (m *MemLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	kl := m.ref(key)
	select {
	case kl.sem <- struct{}{}:
		return m.unlocker(key, kl), true, nil
	default:
		m.unref(key, kl)
		return nil, false, nil
	}
}

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a lease based lock shared by every instance using the same Redis
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker connects to redisURL and returns a locker whose leases expire after ttl
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ttl), nil
}

// NewRedisLockerWithClient creates a locker from an existing Redis client
func NewRedisLockerWithClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Close closes the underlying client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) acquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				zap.S().Errorw("failed to release lock", "key", key, "error", err)
			}
		})
	}, true, nil
}

// Lock implements Locker
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		unlock, ok, err := l.acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	return l.acquire(ctx, key)
}
