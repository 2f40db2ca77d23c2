package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations keeps revoked token ids as keys that expire together with
// the token they revoke.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocations(rdb *redis.Client, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevocations{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRevocations) key(tokenID string) string { return r.prefix + ":" + tokenID }

// Revoke stores tokenID until exp.  An already expired token needs no entry.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, accountID uint64, exp *time.Time) error {
	var ttl time.Duration
	if exp != nil {
		ttl = exp.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}
	if err := r.rdb.Set(ctx, r.key(tokenID), accountID, ttl).Err(); err != nil {
		return fmt.Errorf("revocations.Revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is in the set.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocations.IsRevoked: %w", err)
	}
	return n > 0, nil
}
