package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired 等待超时仍未获得锁
var ErrLockNotAcquired = errors.New("lock not acquired")

const (
	defaultLockTTL      = 30 * time.Second
	defaultLockWait     = 5 * time.Second
	defaultRetryBackoff = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Locker 基于 Redis SETNX 的分布式锁；未配置 Redis 时直接执行回调
type Locker struct {
	client       *redis.Client
	prefix       string
	wait         time.Duration
	retryBackoff time.Duration
}

// NewLocker 创建分布式锁，client 为 nil 时退化为直接执行
func NewLocker(client *redis.Client, prefix string, wait time.Duration) *Locker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &Locker{
		client:       client,
		prefix:       strings.TrimSpace(prefix),
		wait:         wait,
		retryBackoff: defaultRetryBackoff,
	}
}

// WithLock 持锁执行 fn，结束后仅释放自己持有的锁
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	if fn == nil {
		return errors.New("lock callback is nil")
	}
	if l == nil || l.client == nil {
		return fn()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	fullKey := buildKeyWithPrefix(l.prefix, key)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	for {
		ok, err := l.client.SetNX(waitCtx, fullKey, token, ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return ErrLockNotAcquired
			}
			return err
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retryBackoff)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLockNotAcquired
		case <-timer.C:
		}
	}
	defer l.release(fullKey, token)
	return fn()
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

func buildKeyWithPrefix(prefix, key string) string {
	trimmed := strings.TrimSpace(key)
	switch {
	case trimmed == "":
		return prefix
	case prefix == "":
		return trimmed
	default:
		return prefix + ":" + trimmed
	}
}
