package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLease = 30 * time.Second
	retryEvery   = 50 * time.Millisecond
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

// Redis is a Locker shared by every replica talking to the same Redis.
// The lease bounds how long a crashed holder can block a key; a live holder
// renews it every lease/3. When renewal finds the key gone or owned by
// another token, the held context is cancelled with ErrLeaseLost.
type Redis struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	wait   time.Duration
}

// NewRedis creates a distributed locker. wait caps how long Acquire retries
// when ctx carries no deadline of its own.
func NewRedis(client *redis.Client, lease, wait time.Duration) *Redis {
	if client == nil {
		panic("keylock: redis client cannot be nil")
	}
	if lease <= 0 {
		lease = defaultLease
	}
	return &Redis{client: client, prefix: "dialogue:lock", lease: lease, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok && r.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	lockKey := fmt.Sprintf("%s:%s", r.prefix, key)
	token := uuid.NewString()
	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, lockKey, token, r.lease).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, nil, fmt.Errorf("keylock: acquire %s: %w", key, err)
		}
		if ok {
			held, release := r.hold(ctx, lockKey, token)
			return held, release, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, nil, errors.Join(ErrLockTimeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// hold starts the lease watchdog and returns the held context with its release func.
func (r *Redis) hold(ctx context.Context, lockKey, token string) (context.Context, func()) {
	held, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go r.watch(held, cancel, lockKey, token, done)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel(nil)
			<-done
			unlockCtx, unlockCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer unlockCancel()
			_ = unlockScript.Run(unlockCtx, r.client, []string{lockKey}, token).Err()
		})
	}
}

func (r *Redis) watch(held context.Context, lose context.CancelCauseFunc, lockKey, token string, done chan<- struct{}) {
	defer close(done)
	every := r.lease / 3
	if every <= 0 {
		every = time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	renewed := time.Now()
	for {
		select {
		case <-held.Done():
			return
		case <-ticker.C:
		}
		n, err := renewScript.Run(held, r.client, []string{lockKey}, token, r.lease.Milliseconds()).Int()
		switch {
		case err == nil && n == 1:
			renewed = time.Now()
		case err == nil:
			lose(ErrLeaseLost)
			return
		case held.Err() != nil:
			return
		case time.Since(renewed) >= r.lease:
			// Redis unreachable for a whole lease: another replica may own the key by now.
			lose(fmt.Errorf("%w: %w", ErrLeaseLost, err))
			return
		}
	}
}
