package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 10 * time.Second
	retryBackoff = 25 * time.Millisecond
)

// compare-and-delete so an expired holder cannot release a successor's lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// compare-and-extend; 0 means the lock is no longer ours
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker is a Locker shared by every instance that talks to the same Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// Lock polls SET NX until it wins or ctx is done. While held, the lock is
// extended every third of its TTL. The held context is cancelled as soon as an
// extension finds the lock gone or cannot reach Redis before the TTL runs out.
func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}

	held, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(held, cancel, stop, redisKey, token)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel()
			ctx, cancelRelease := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelRelease()
			if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.Warningf("Failed to release lock %s: %v", redisKey, err)
			}
		})
	}, nil
}

func (l *RedisLocker) renew(held context.Context, lost context.CancelFunc, stop <-chan struct{}, redisKey, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	deadline := time.Now().Add(l.ttl)
	for {
		select {
		case <-stop:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		n, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err == nil && n == 1:
			deadline = time.Now().Add(l.ttl)
		case err == nil:
			logger.Errorf("Lock %s was lost before release", redisKey)
			lost()
			return
		case time.Now().After(deadline):
			logger.Errorf("Lock %s expired while Redis was unreachable: %v", redisKey, err)
			lost()
			return
		default:
			logger.Warningf("Failed to extend lock %s: %v", redisKey, err)
		}
	}
}
