package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inkpad/api/internal/util"
)

const lockRetryInterval = 25 * time.Millisecond

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes saves of one document across API replicas. A
// lock expires after ttl so a crashed holder cannot wedge the document.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) key(documentID string) string {
	return l.prefix + "lock:document:" + documentID
}

// Lock blocks until the document lock is held or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	key := l.key(documentID)
	token := util.NewID("lk")
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire document lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
