package staging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked: ключ уже занят другим владельцем.
var ErrLocked = errors.New("lock is held by another commit")

type Lock interface {
	Release(ctx context.Context) error
}

// Locker: короткие эксклюзивные локи по ключу.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// LocalLocker: лок в пределах одного процесса.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	until := now.Add(ttl)
	l.held[key] = until
	return &localLock{owner: l, key: key, until: until}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	until time.Time
}

func (k *localLock) Release(context.Context) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	// лок мог истечь и уйти другому владельцу
	if until, ok := k.owner.held[k.key]; ok && until.Equal(k.until) {
		delete(k.owner.held, k.key)
	}
	return nil
}

// RedisLocker: общий лок коммита для нескольких реплик.
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), prefix: prefix}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return redisLock{lock}, nil
}

type redisLock struct{ l *redislock.Lock }

func (r redisLock) Release(ctx context.Context) error {
	if err := r.l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

// ConnectRedis: ping с нарастающей паузой, пока сервер не ответит или ctx не кончится.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb, nil
		}
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1<<min(attempt, 4))):
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("connect redis %s: %w", addr, err)
}
