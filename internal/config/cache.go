package config

import "time"

// AccountCacheConfig controls the Redis read-through cache in front of
// account lookups by id.  The gate never reads through it.
type AccountCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadAccountCacheConfig reads ACCOUNT_CACHE_* variables.
func LoadAccountCacheConfig() AccountCacheConfig {
	c := AccountCacheConfig{
		Enabled: envBool("ACCOUNT_CACHE_ENABLED", true),
		TTL:     envDur("ACCOUNT_CACHE_TTL", 30*time.Second),
		Prefix:  envStr("ACCOUNT_CACHE_PREFIX", "acct"),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c
}
