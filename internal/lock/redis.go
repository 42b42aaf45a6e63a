package lock

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
// KEYS[1] = lock key
// ARGV[1] = holder token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds a per-project key with a TTL so a crashed holder cannot
// block a project forever.
type RedisLocker struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a lock survives
// its holder.
func NewRedisLocker(client *redis.Client, timeout, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, timeout: timeout, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, projectID string) (Unlock, error) {
	key := "lock:project:" + projectID
	token := uuid.NewString()

	err := poll(ctx, projectID, l.timeout, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, key, token, l.ttl).Result()
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				log.Printf("lock: release of %s failed, key expires in %s: %v", key, l.ttl, err)
			}
		})
	}, nil
}
