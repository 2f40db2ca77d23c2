package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/metrics"
	"github.com/iliyamo/authgate/internal/model"
)

// cachedAccount is the Redis payload.  The password hash is deliberately
// absent, so accounts served from the cache carry an empty PasswordHash.
type cachedAccount struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Age       *int      `json:"age,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CachedAccounts decorates an AccountStore with a read-through Redis cache
// for GetByID.  Writes go to the wrapped store first and then drop the
// cached entry.  Redis errors never fail a request; the wrapped store
// answers instead.
//
// A cached entry can outlive a delete made outside this decorator, so
// lookups that decide whether a session is still valid must go through
// Uncached.
type CachedAccounts struct {
	next    AccountStore
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
}

// NewCachedAccounts returns next unchanged when caching is disabled or no
// Redis client is available.
func NewCachedAccounts(next AccountStore, rdb *redis.Client, cfg config.AccountCacheConfig, m *metrics.Metrics) AccountStore {
	if !cfg.Enabled || rdb == nil {
		return next
	}
	return &CachedAccounts{next: next, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, metrics: m}
}

// Uncached returns the store beneath any account cache.
func Uncached(store AccountStore) AccountStore {
	if c, ok := store.(*CachedAccounts); ok {
		return c.next
	}
	return store
}

func (c *CachedAccounts) key(id uint64) string {
	return c.prefix + ":" + strconv.FormatUint(id, 10)
}

func (c *CachedAccounts) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	if bs, err := c.rdb.Get(ctx, c.key(id)).Bytes(); err == nil {
		var ca cachedAccount
		if json.Unmarshal(bs, &ca) == nil {
			c.metrics.CacheLookup("hit")
			return model.Account{
				ID: ca.ID, Username: ca.Username, Email: ca.Email, Name: ca.Name,
				Age: ca.Age, CreatedAt: ca.CreatedAt, UpdatedAt: ca.UpdatedAt,
			}, nil
		}
	}
	c.metrics.CacheLookup("miss")

	a, err := c.next.GetByID(ctx, id)
	if err != nil {
		return a, err
	}
	payload, err := json.Marshal(cachedAccount{
		ID: a.ID, Username: a.Username, Email: a.Email, Name: a.Name,
		Age: a.Age, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	})
	if err == nil {
		_ = c.rdb.Set(ctx, c.key(id), payload, c.ttl).Err()
	}
	return a, nil
}

func (c *CachedAccounts) Create(ctx context.Context, a model.NewAccount) (uint64, error) {
	return c.next.Create(ctx, a)
}

func (c *CachedAccounts) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return c.next.GetByEmail(ctx, email)
}

func (c *CachedAccounts) UpdateProfile(ctx context.Context, id uint64, upd model.ProfileUpdate) error {
	err := c.next.UpdateProfile(ctx, id, upd)
	c.invalidate(id)
	return err
}

func (c *CachedAccounts) Delete(ctx context.Context, id uint64) error {
	err := c.next.Delete(ctx, id)
	if err == nil || errors.Is(err, ErrNotFound) {
		c.invalidate(id)
	}
	return err
}

// invalidate uses a fresh context so a cancelled request still drops the entry.
func (c *CachedAccounts) invalidate(id uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = c.rdb.Del(ctx, c.key(id)).Err()
}
