package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/repository"
)

func TestGate_Authorized(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	s := register(t, f, "alice@example.com", "secret")

	d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.NoError(t, err)
	require.True(t, d.Authorized)
	assert.Equal(t, s.Account.ID, d.Identity.AccountID)
	assert.Equal(t, s.Token.ID, d.Identity.TokenID)
	assert.Equal(t, "alice@example.com", d.Identity.Account.Email)
	require.NotNil(t, d.Identity.ExpiresAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisionsTotal.WithLabelValues("authorized", "")))
}

func TestGate_Rejections(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	s := register(t, f, "bob@example.com", "secret")
	subject := Subject(s.Account.ID)
	now := time.Now()

	nonNumeric, err := f.codec.Issue("bob")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want Reason
	}{
		{"absent", "", ReasonNoToken},
		{"garbage", "definitely-not-a-jwt", ReasonMalformed},
		{"truncated", s.Token.Value[:len(s.Token.Value)/2], ReasonMalformed},
		{"other secret", signRaw(t, []byte("other"), jwt.RegisteredClaims{
			Subject: subject, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ReasonInvalidSignature},
		{"expired", signRaw(t, testSecret, jwt.RegisteredClaims{
			Subject: subject, IssuedAt: jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		}), ReasonExpired},
		{"no expiry", signRaw(t, testSecret, jwt.RegisteredClaims{Subject: subject}), ReasonMalformed},
		{"non-numeric subject", nonNumeric.Value, ReasonMalformed},
		{"unknown account", signRaw(t, testSecret, jwt.RegisteredClaims{
			Subject: "424242", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ReasonAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.gate.Authenticate(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.False(t, d.Authorized)
			assert.Equal(t, tt.want, d.Reason)
			assert.Zero(t, d.Identity)
		})
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisionsTotal.WithLabelValues("rejected", string(ReasonExpired))))
}

func TestGate_DeletedAccountRejectsValidToken(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	s := register(t, f, "carol@example.com", "secret")
	require.NoError(t, f.store.Delete(context.Background(), s.Account.ID))

	d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.NoError(t, err)
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonAccountNotFound, d.Reason)
}

func TestGate_DeletedAccountRejectedWithCacheOn(t *testing.T) {
	mem, _ := repository.NewMemory()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cached := repository.NewCachedAccounts(mem, rdb, config.AccountCacheConfig{
		Enabled: true, TTL: time.Minute, Prefix: "acct",
	}, nil)

	f := newFixture(t, fixtureOpts{store: cached})
	s := register(t, f, "cached@example.com", "secret")

	// Warm the cache, then delete behind the decorator's back.
	_, err := cached.GetByID(context.Background(), s.Account.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists("acct:"+Subject(s.Account.ID)))
	require.NoError(t, mem.Delete(context.Background(), s.Account.ID))

	d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.NoError(t, err)
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonAccountNotFound, d.Reason)
}

func TestGate_StorageFailureIsNotRejection(t *testing.T) {
	mem := newFixture(t, fixtureOpts{})
	s := register(t, mem, "dave@example.com", "secret")

	f := newFixture(t, fixtureOpts{store: failingAccounts{
		AccountStore: mem.store, err: errors.New("connection refused"),
	}})
	d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.False(t, d.Authorized)
	assert.Empty(t, d.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GateDecisionsTotal.WithLabelValues("error", "storage")))
}

func TestGate_LookupTimeout(t *testing.T) {
	mem := newFixture(t, fixtureOpts{})
	s := register(t, mem, "erin@example.com", "secret")

	f := newFixture(t, fixtureOpts{
		store:   hangingAccounts{AccountStore: mem.store},
		timeout: 20 * time.Millisecond,
	})
	start := time.Now()
	_, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGate_Revoked(t *testing.T) {
	revs := newRevocations(t)
	f := newFixture(t, fixtureOpts{revocations: revs})
	s := register(t, f, "frank@example.com", "secret")

	require.NoError(t, revs.Revoke(context.Background(), s.Token.ID, s.Account.ID, s.Token.ExpiresAt))
	d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
	require.NoError(t, err)
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonRevoked, d.Reason)
}

func TestGate_ConcurrentUse(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	s := register(t, f, "grace@example.com", "secret")

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			d, err := f.gate.Authenticate(context.Background(), s.Token.Value)
			if err == nil && !d.Authorized {
				err = errors.New(string(d.Reason))
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-errs)
	}
}
