package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

// parseTTL accepts a positive duration ("24h", "15m") or "never".
func parseTTL(s string) (time.Duration, bool, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "never") {
		return 0, true, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, err
	}
	if d <= 0 {
		return 0, false, errors.New("must be positive")
	}
	return d, false, nil
}

// String renders the config for startup logs with secrets masked.
func (c Config) String() string {
	ttl := c.TokenTTL.String()
	if c.NeverExpire {
		ttl = "never"
	}
	return fmt.Sprintf("env=%s port=%s db=%s token_ttl=%s revocation=%s cookie=%s secret=%s",
		c.Env, c.Port, c.DBDriver, ttl, c.Revocation, c.Cookie.Name, mask(c.JWTSecret))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
