package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyStore is the Redis subset the deduper needs.
type KeyStore interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduper marks keys as seen for ttl.
type Deduper struct {
	rdb    KeyStore
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewDeduper(rdb KeyStore, prefix string, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

// AcquireOnce reports whether key is seen for the first time. When Redis is
// unreachable it fails open and returns true; the store's own unique
// constraints catch the duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, key string) bool {
	full := d.prefix + ":" + key
	ok, err := d.rdb.SetNX(ctx, full, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("dedup_key", full),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicated key", zap.String("dedup_key", full))
	}
	return ok
}

// Claim is AcquireOnce with the Redis error surfaced, for callers that must
// fail closed.
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+":"+key, 1, d.ttl).Result()
}

// Release forgets key so a later attempt can claim it again. Callers use it
// when the work guarded by the key did not complete.
func (d *Deduper) Release(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, d.prefix+":"+key).Err()
}
