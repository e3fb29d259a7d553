package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LockRepository stores short-lived ownership tokens in Redis.
type LockRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewLockRepository constructs a lock repository. Keys are namespaced by prefix.
func NewLockRepository(client *redis.Client, prefix string, logger *zap.Logger) *LockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "snapshot-import:"
	}
	return &LockRepository{client: client, prefix: prefix, logger: logger}
}

// Acquire sets key to token unless it is already held.
func (r *LockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release removes key if token still owns it.
func (r *LockRepository) Release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if deleted == 0 {
		r.logger.Warn("lock expired before release", zap.String("key", key))
		return appErrors.ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry of key to ttl from now if token still owns it.
func (r *LockRepository) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	extended, err := extendScript.Run(ctx, r.client, []string{r.prefix + key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis extend %s: %w", key, err)
	}
	if extended == 0 {
		return appErrors.ErrLockNotHeld
	}
	return nil
}
