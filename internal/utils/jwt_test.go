package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string, ttl time.Duration) *Codec {
	t.Helper()
	c, err := NewCodec(CodecConfig{Secret: []byte(secret), TTL: ttl})
	require.NoError(t, err)
	return c
}

func TestNewCodec_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  CodecConfig
	}{
		{name: "empty secret", cfg: CodecConfig{TTL: time.Hour}},
		{name: "no expiry policy", cfg: CodecConfig{Secret: []byte("k")}},
		{name: "negative ttl", cfg: CodecConfig{Secret: []byte("k"), TTL: -time.Second}},
		{name: "both ttl and never", cfg: CodecConfig{Secret: []byte("k"), TTL: time.Hour, NeverExpire: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t, "super-secret", time.Hour)

	for _, subject := range []string{"1", "42", "18446744073709551615"} {
		tok, err := c.Issue(subject)
		require.NoError(t, err)
		require.NotNil(t, tok.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *tok.ExpiresAt, 2*time.Second)

		claims, err := c.Verify(tok.Value)
		require.NoError(t, err)
		assert.Equal(t, subject, claims.Subject)
		assert.Equal(t, tok.ID, claims.ID)
	}
}

func TestCodec_IssueIsUnique(t *testing.T) {
	c := newTestCodec(t, "k", time.Hour)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	a, err := c.Issue("7")
	require.NoError(t, err)
	b, err := c.Issue("7")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Value, b.Value)
}

func TestCodec_SignatureIsDeterministic(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "7", ID: "fixed"}
	a, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	b, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCodec_WrongSecret(t *testing.T) {
	issuer := newTestCodec(t, "right-secret", time.Hour)
	verifier := newTestCodec(t, "wrong-secret", time.Hour)

	tok, err := issuer.Issue("1")
	require.NoError(t, err)

	_, err = verifier.Verify(tok.Value)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_Expired(t *testing.T) {
	c := newTestCodec(t, "k", time.Minute)
	c.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := c.Issue("1")
	require.NoError(t, err)

	c.now = time.Now
	_, err = c.Verify(tok.Value)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_Malformed(t *testing.T) {
	c := newTestCodec(t, "k", time.Hour)

	for _, raw := range []string{"", "not.a.jwt", "abc", "a.b.c.d", "..."} {
		_, err := c.Verify(raw)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec(t, "k", time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = c.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Verify(none)
	assert.Error(t, err)
}

func TestCodec_TamperedSignature(t *testing.T) {
	c := newTestCodec(t, "k", time.Hour)
	tok, err := c.Issue("1")
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = c.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodec_NeverExpire(t *testing.T) {
	c, err := NewCodec(CodecConfig{Secret: []byte("k"), NeverExpire: true})
	require.NoError(t, err)
	assert.Zero(t, c.TTL())

	tok, err := c.Issue("9")
	require.NoError(t, err)
	assert.Nil(t, tok.ExpiresAt)

	c.now = func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) }
	claims, err := c.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "9", claims.Subject)
	assert.Nil(t, claims.ExpiresAt)
}

func TestCodec_TTLCodecRefusesTokensWithoutExpiry(t *testing.T) {
	never, err := NewCodec(CodecConfig{Secret: []byte("k"), NeverExpire: true})
	require.NoError(t, err)
	strict := newTestCodec(t, "k", time.Hour)

	tok, err := never.Issue("1")
	require.NoError(t, err)

	_, err = strict.Verify(tok.Value)
	assert.ErrorIs(t, err, ErrMalformed)
}
