package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockTTL = 30 * time.Second

// releaseScript deletes the lock key only if it still holds our token,
// so an expired-and-retaken lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// GameLock serializes mutations per game through Redis. Acquisition is
// non-blocking: a held lock means another request is already driving
// this game forward.
type GameLock struct {
	redis *redis.Client
}

func NewGameLock(rdb *redis.Client) *GameLock {
	return &GameLock{redis: rdb}
}

// WithLock runs fn while holding the per-game lock. Returns ErrConflict
// if the lock is already held.
func (l *GameLock) WithLock(ctx context.Context, gameID uint, fn func() error) error {
	key := fmt.Sprintf("lock:game:%d", gameID)
	token, err := newLockToken()
	if err != nil {
		return fmt.Errorf("generate lock token: %w", err)
	}

	ok, err := l.redis.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire game lock: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	defer releaseScript.Run(context.WithoutCancel(ctx), l.redis, []string{key}, token)

	return fn()
}

func newLockToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
