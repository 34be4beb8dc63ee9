package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker guards a job so only one instance runs it at a time
type Locker interface {
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// NewRedisClient parses a redis:// url and checks the server is reachable
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// deletes the key only while it still holds our value
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLock is a Locker shared by every instance pointed at the same redis
type RedisLock struct {
	client lockClient
}

// NewRedisLock returns a lock backed by client
func NewRedisLock(client lockClient) *RedisLock {
	return &RedisLock{client: client}
}

func lockKey(name string) string {
	return "lock:" + name
}

// TryAcquireLock takes the lock if nobody holds it. The lock lapses after ttl.
func (l *RedisLock) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseLock frees the lock if owner still holds it
func (l *RedisLock) ReleaseLock(ctx context.Context, name, owner string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{lockKey(name)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// LocalLock is an in-process Locker for single instance deployments
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]localHold
	clock func() time.Time
}

type localHold struct {
	owner     string
	expiresAt time.Time
}

// NewLocalLock returns an empty LocalLock
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]localHold), clock: time.Now}
}

// TryAcquireLock takes the lock if it is free or its holder's ttl has passed
func (l *LocalLock) TryAcquireLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[name]; ok && now.Before(h.expiresAt) {
		return false, nil
	}
	l.held[name] = localHold{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

// ReleaseLock frees the lock if owner still holds it
func (l *LocalLock) ReleaseLock(_ context.Context, name, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[name]; ok && h.owner == owner {
		delete(l.held, name)
	}
	return nil
}
