package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock provides distributed locking via Redis using SET NX with a
// TTL. The TTL bounds how long a crashed run can block a restart. A
// random ownership value and Lua scripts keep release/extend atomic so a
// lock held by another process is never released by mistake.
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration

	// lastRefresh gates Extend so frequent callers only hit Redis once
	// per TTL third. The lock is owned by one goroutine, no mutex.
	lastRefresh time.Time
}

// NewRedisLock creates a new distributed lock backed by Redis.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// Acquire tries to acquire the lock. Returns true if successful.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	result, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if result {
		l.lastRefresh = time.Now()
	}
	return result, nil
}

// Release releases the lock only if we still own it.
func (l *RedisLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}

// Extend resets the lock TTL so a healthy run outlives it. Safe to call
// once per unit of work: it only touches Redis after a third of the TTL
// has elapsed since the last refresh.
func (l *RedisLock) Extend(ctx context.Context) error {
	if time.Since(l.lastRefresh) < l.ttl/3 {
		return nil
	}
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	res, err := script.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if n, ok := res.(int64); ok && n == 0 {
		return fmt.Errorf("extend lock %s: no longer held", l.key)
	}
	l.lastRefresh = time.Now()
	return nil
}
