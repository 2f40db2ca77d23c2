package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/service"
	"github.com/iliyamo/authgate/internal/utils"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type gateFixture struct {
	store *repository.MemoryAccounts
	codec *utils.Codec
	gate  *service.Gate
}

func newGateFixture(t *testing.T, store repository.AccountStore) *gateFixture {
	t.Helper()
	mem, _ := repository.NewMemory()
	if store == nil {
		store = mem
	}
	codec, err := utils.NewCodec(utils.CodecConfig{Secret: []byte("mw-secret"), TTL: time.Hour})
	require.NoError(t, err)
	accounts := service.NewAccounts(store, utils.NewHasher(4))
	return &gateFixture{
		store: mem,
		codec: codec,
		gate:  service.NewGate(codec, accounts, service.GateOptions{Logger: quietLogger()}),
	}
}

func (f *gateFixture) account(t *testing.T, email string) (uint64, string) {
	t.Helper()
	id, err := f.store.Create(context.Background(), model.NewAccount{Username: email, Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	tok, err := f.codec.Issue(service.Subject(id))
	require.NoError(t, err)
	return id, tok.Value
}

func serve(e *echo.Echo, method, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.String(http.StatusInternalServerError, "no identity")
	}
	return c.String(http.StatusOK, id.Account.Email+" "+c.Get("user_id").(string))
}

func TestSessionAuth(t *testing.T) {
	f := newGateFixture(t, nil)
	id, token := f.account(t, "alice@example.com")

	e := echo.New()
	e.GET("/home", whoami, SessionAuth(f.gate, "token", "/login"))

	rec := serve(e, http.MethodGet, "/home", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com "+service.Subject(id), rec.Body.String())

	for name, cookie := range map[string]string{
		"no cookie": "",
		"garbage":   "not-a-token",
		"tampered":  token[:len(token)-2] + "xx",
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/home", cookie)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestSessionAuth_DeletedAccountRedirects(t *testing.T) {
	f := newGateFixture(t, nil)
	id, token := f.account(t, "bob@example.com")
	require.NoError(t, f.store.Delete(context.Background(), id))

	e := echo.New()
	e.GET("/home", whoami, SessionAuth(f.gate, "token", "/login"))
	rec := serve(e, http.MethodGet, "/home", token)
	assert.Equal(t, http.StatusFound, rec.Code)
}

type brokenStore struct{ repository.AccountStore }

func (brokenStore) GetByID(context.Context, uint64) (model.Account, error) {
	return model.Account{}, io.ErrUnexpectedEOF
}

func TestSessionAuth_StorageErrorIsNotRedirect(t *testing.T) {
	healthy := newGateFixture(t, nil)
	_, token := healthy.account(t, "carol@example.com")

	gate := service.NewGate(healthy.codec, service.NewAccounts(brokenStore{healthy.store}, utils.NewHasher(4)),
		service.GateOptions{Logger: quietLogger()})

	e := echo.New()
	e.GET("/home", whoami, SessionAuth(gate, "token", "/login"))
	rec := serve(e, http.MethodGet, "/home", token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderLocation))
}

func TestRequireOwner(t *testing.T) {
	f := newGateFixture(t, nil)
	id, token := f.account(t, "dave@example.com")

	e := echo.New()
	e.POST("/edit/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		SessionAuth(f.gate, "token", "/login"), RequireOwner("id"))

	rec := serve(e, http.MethodPost, "/edit/"+service.Subject(id), token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{"/edit/" + service.Subject(id+1), "/edit/abc"} {
		rec = serve(e, http.MethodPost, path, token)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "Unauthorized", rec.Body.String())
	}
}

func TestRequireOwner_WithoutGate(t *testing.T) {
	e := echo.New()
	e.POST("/edit/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireOwner("id"))
	rec := serve(e, http.MethodPost, "/edit/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func rateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/login", ok, NewTokenBucket(rateLimitConfig(), rdb, quietLogger()))
	e.POST("/register", ok, NewTokenBucket(rateLimitConfig(), rdb, quietLogger()))

	rec := serve(e, http.MethodPost, "/login", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodPost, "/login", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(e, http.MethodPost, "/login", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different route has its own bucket.
	rec = serve(e, http.MethodPost, "/register", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ttl := mr.TTL("rl:ip:192.0.2.1:route:POST /login")
	assert.Equal(t, 10*time.Minute, ttl)
}

func TestTokenBucket_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(rateLimitConfig(), rdb, quietLogger()))
	for i := 0; i < 5; i++ {
		rec := serve(e, http.MethodPost, "/login", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := rateLimitConfig()
	cfg.Enabled = false
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(cfg, nil, quietLogger()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", "").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/login")

	cfg := rateLimitConfig()
	assert.Equal(t, "rl:ip:192.0.2.1:route:POST /login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set("user_id", "7")
	assert.Equal(t, "rl:user:7", buildRateKey(cfg, c))
}
