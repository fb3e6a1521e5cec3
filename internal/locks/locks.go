package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/logger"
)

// ProjectLocker serializes mutations of a single project's learning path.
// Acquire fails fast with a conflict error when the lock is already held.
type ProjectLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements ProjectLocker with a SET NX lease, so the lock holds
// across multiple backend instances and expires if a holder dies.
type RedisLocker struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisLocker(client *redis.Client, log *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, log: log.With("component", "redis_locker")}
}

// releaseScript deletes the lease only when the stored token still matches,
// so a release after expiry cannot drop another holder's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "lock acquisition failed", err)
	}
	if !ok {
		return nil, apperr.Newf(apperr.CodeConflict, "operation already in progress for %s", key)
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn("failed to release lock", "key", key, "error", err)
		}
	}, nil
}

// LocalLocker is an in-process ProjectLocker for single-instance deployments
// and tests. The ttl is ignored; the lock is held until release is called.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, apperr.Newf(apperr.CodeConflict, "operation already in progress for %s", key)
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
