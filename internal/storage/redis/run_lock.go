package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/career-crawler/internal/id/uuid"
)

const (
	runLockKey     = "run_lock"
	defaultLockTTL = 2 * time.Hour
	lockOpTimeout  = 5 * time.Second
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock implements crawler.RunLocker with SET NX and a TTL so a crashed
// holder cannot block runs forever.
type RunLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	token  string
}

// NewRunLock builds a lock under prefix. ttl <= 0 uses two hours.
func NewRunLock(client redis.UniversalClient, prefix string, ttl time.Duration) (*RunLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RunLock{client: client, key: prefix + runLockKey, ttl: ttl}, nil
}

// TryLock acquires the lock if nobody holds it.
func (l *RunLock) TryLock() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()
	token := uuid.New().NewRequestID()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Unlock releases the lock only if this instance still owns it.
func (l *RunLock) Unlock() error {
	if l.token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	l.token = ""
	return nil
}
