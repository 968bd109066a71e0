package locks

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultBaseDelay = 5 * time.Millisecond
	maxRetryDelay    = 200 * time.Millisecond
	jitterFactor     = 0.3
)

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extend the lease only while the token still matches
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis serializes a key across processes with SET NX PX. The lease is
// renewed every ttl/3 while held, so ttl only bounds how long a crashed
// holder blocks the key.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func lockKey(key string) string { return fmt.Sprintf("lib:lock:title:%s", key) }

// Lock polls with exponential backoff until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.NewString()
	delay := defaultBaseDelay
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go r.keepAlive(k, token, stop, done)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(ctx, r.rdb, []string{k}, token).Err()
				})
			}, nil
		}

		jitter := time.Duration(rand.Float64() * float64(delay) * jitterFactor) //nolint:gosec // jitter only
		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (r *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(r.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			n, err := renewScript.Run(ctx, r.rdb, []string{key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				// lost the key; nothing left to renew
				return
			}
		}
	}
}
