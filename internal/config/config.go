package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Revocation backends accepted in REVOCATION_BACKEND.
const (
	RevocationNone  = "none"
	RevocationRedis = "redis"
	RevocationMySQL = "mysql"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  A Config is built once at startup and handed to
// constructors; nothing reads the environment after that.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // logrus level name

	DBDriver string // mysql | memory
	DBUser   string
	DBPass   string // optional
	DBHost   string
	DBPort   string
	DBName   string

	JWTSecret     string        // secret used to sign session tokens
	TokenTTL      time.Duration // lifetime of a session token; zero only when NeverExpire is set
	NeverExpire   bool          // TOKEN_TTL=never
	BcryptCost    int           // bcrypt cost for password hashing
	LookupTimeout time.Duration // bound on account lookups performed by the gate

	Cookie     CookieConfig
	LoginPath  string // where rejected requests are redirected
	HomePath   string // where successful login/registration lands
	Revocation string // none | redis | mysql
}

// CookieConfig describes the token carrier.
type CookieConfig struct {
	Name   string
	Secure bool
	Path   string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:      must("APP_ENV"),
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBDriver: strings.ToLower(must("DB_DRIVER")),

		JWTSecret:     must("JWT_SECRET"),
		BcryptCost:    mustInt("BCRYPT_COST"),
		LookupTimeout: envDur("LOOKUP_TIMEOUT", 3*time.Second),

		Cookie: CookieConfig{
			Name:   envStr("COOKIE_NAME", "token"),
			Secure: envBool("COOKIE_SECURE", false),
			Path:   "/",
		},
		LoginPath:  envStr("LOGIN_PATH", "/login"),
		HomePath:   envStr("HOME_PATH", "/home"),
		Revocation: strings.ToLower(envStr("REVOCATION_BACKEND", RevocationNone)),
	}
	cfg.TokenTTL, cfg.NeverExpire = mustTTL("TOKEN_TTL")

	switch cfg.DBDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		log.Fatalf("invalid DB_DRIVER: %q", cfg.DBDriver)
	}
	switch cfg.Revocation {
	case RevocationNone, RevocationRedis:
	case RevocationMySQL:
		if cfg.DBDriver != DriverMySQL {
			log.Fatalf("REVOCATION_BACKEND=mysql requires DB_DRIVER=mysql")
		}
	default:
		log.Fatalf("invalid REVOCATION_BACKEND: %q", cfg.Revocation)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustTTL reads a required token lifetime.  The value is either a positive
// Go duration or the literal "never"; omitting it is a startup error.
func mustTTL(key string) (time.Duration, bool) {
	ttl, never, err := parseTTL(must(key))
	if err != nil {
		log.Fatalf("invalid duration for %s: %v", key, err)
	}
	return ttl, never
}
