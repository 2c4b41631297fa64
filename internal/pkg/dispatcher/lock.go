package dispatcher

import (
	"time"

	"github.com/subalert/subalert/internal/pkg/cache"
)

// Locker guards a reminder against concurrent in-flight sends. Acquire takes a
// short lease so a crashed worker cannot hold a claim forever.
type Locker interface {
	Acquire(key string, lease time.Duration) (bool, error)
	Release(key string)
}

type redisLocker struct{}

// NewRedisLocker creates a Locker backed by the shared Redis cache.
func NewRedisLocker() Locker {
	return &redisLocker{}
}

func (l *redisLocker) Acquire(key string, lease time.Duration) (bool, error) {
	return cache.SetNX(key, "1", lease)
}

func (l *redisLocker) Release(key string) {
	_ = cache.Delete(key)
}
