// Package cache memoizes backend answers. Answers are stored in an
// in-process LRU or, when configured, in Redis so that several queryroute
// instances share them.
package cache

import (
	"context"
	"time"

	"github.com/dusk-indust/queryroute/internal/config"
)

// Store holds cached answers by key.
type Store interface {
	// Get returns the value for key. A miss is (_, false, nil).
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value for ttl; ttl <= 0 uses the store default.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Purge removes every entry.
	Purge(ctx context.Context) error

	Close() error
}

// Open returns the store selected by cfg: Redis when redis_addr is set,
// otherwise an LRU of cfg.Size entries.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	if cfg.RedisAddr != "" {
		return NewRedis(ctx, cfg.RedisAddr, cfg.TTL)
	}
	return NewLRU(cfg.Size, cfg.TTL), nil
}
