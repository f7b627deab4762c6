package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.CodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.CodeConflict, "lock not held by this owner")
)

const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// LockOption configures a Mutex.
type LockOption func(*Mutex)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(m *Mutex) { m.ttl = ttl }
}

func WithRetry(count int, delay time.Duration) LockOption {
	return func(m *Mutex) {
		m.retryCount = count
		m.retryDelay = delay
	}
}

// withToken fixes the owner token; tests use it to predict lock values.
func withToken(token string) LockOption {
	return func(m *Mutex) { m.token = token }
}

// Mutex is a single-owner lock on one redis key.  The holder is identified
// by a random token so that an expired holder cannot release a newer lock.
type Mutex struct {
	client     *Client
	key        string
	token      string
	ttl        time.Duration
	retryCount int
	retryDelay time.Duration
	logger     logging.Logger
}

func NewMutex(client *Client, name string, log logging.Logger, opts ...LockOption) *Mutex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Mutex{
		client:     client,
		key:        client.KeyPrefix() + "lock:" + name,
		token:      uuid.NewString(),
		ttl:        30 * time.Second,
		retryCount: 30,
		retryDelay: 100 * time.Millisecond,
		logger:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.retryCount < 1 {
		m.retryCount = 1
	}
	return m
}

// Key is the redis key holding the lock.
func (m *Mutex) Key() string { return m.key }

func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "failed to set lock")
	}
	return ok, nil
}

// Lock retries TryLock until it succeeds, the retries run out or ctx ends.
func (m *Mutex) Lock(ctx context.Context) error {
	for i := 0; i < m.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == m.retryCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
	m.logger.Warn("lock busy", logging.String("key", m.key))
	return ErrLockNotAcquired.WithDetail(m.key)
}

func (m *Mutex) Unlock(ctx context.Context) error {
	res, err := m.client.Eval(ctx, unlockScript, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(m.key)
	}
	return nil
}
