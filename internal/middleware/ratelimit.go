package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/config"
)

// bucketScript refills the bucket for the ticks elapsed since the last
// refill and then tries to take one token.  KEYS[1] is the bucket; ARGV is
// now_ms, capacity, tokens per tick, tick_ms, ttl_s.  It returns
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local now, cap, per_tick, tick, ttl =
  tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local saved = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local have, last = tonumber(saved[1]), tonumber(saved[2])
if not have or not last then
  have, last = cap, now
end

if tick > 0 and per_tick > 0 and now > last then
  local ticks = math.floor((now - last) / tick)
  if ticks > 0 then
    have = math.min(cap, have + ticks * per_tick)
    last = last + ticks * tick
  end
end

local ok, wait = 0, 0
if have >= 1 then
  ok, have = 1, have - 1
else
  wait = math.max(0, tick - (now - last))
end

redis.call('HSET', KEYS[1], 'tokens', have, 'last_refill_ms', last)
redis.call('EXPIRE', KEYS[1], ttl)
return { ok, have, wait }
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// NewTokenBucket limits requests per key with a Redis token bucket.  It is
// a pass-through when disabled or when no Redis client is available, and it
// fails open on Redis errors so a cache outage does not lock users out.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	now := time.Now

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []interface{}{
				now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limit check failed")
				return next(c)
			}
			res, ok := parseBucketResult(vals)
			if !ok {
				log.WithField("key", key).Warnf("unexpected rate limit result %#v", vals)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !res.allowed {
				secs := int(math.Ceil(res.retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				log.WithField("key", key).Debug("rate limited")
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "too_many_requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func parseBucketResult(v interface{}) (bucketResult, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketResult{}, false
	}
	return bucketResult{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, true
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// rateKeyFields lists, per RATE_LIMIT_KEY_STRATEGY, the request attributes
// that identify a bucket.  Unknown strategies use all three.
var rateKeyFields = map[string][]string{
	"ip":         {"ip"},
	"user":       {"user"},
	"route":      {"route"},
	"ip_user":    {"ip", "user"},
	"ip_route":   {"ip", "route"},
	"user_route": {"user", "route"},
}

// buildRateKey renders e.g. "rl:ip:192.0.2.1:route:POST /login".
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	attrs := map[string]string{
		"ip":    c.RealIP(),
		"user":  currentUserID(c),
		"route": c.Request().Method + " " + c.Path(),
	}
	if attrs["ip"] == "" {
		attrs["ip"] = "unknown"
	}
	fields, ok := rateKeyFields[strings.ToLower(cfg.KeyStrategy)]
	if !ok {
		fields = []string{"ip", "user", "route"}
	}

	var b strings.Builder
	b.WriteString(cfg.Prefix)
	for _, f := range fields {
		b.WriteString(":" + f + ":" + attrs[f])
	}
	return b.String()
}
