package utils // package utils provides the session token codec and password hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures.  They are only distinguished for logging and
// metrics; callers treat all three the same way.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// CodecConfig is the explicit configuration of a Codec.  Exactly one of TTL
// or NeverExpire must be set: a codec never falls back to non-expiring
// tokens by omission.
type CodecConfig struct {
	Secret      []byte
	TTL         time.Duration
	NeverExpire bool
	Issuer      string
}

// Token is a freshly issued session credential.
type Token struct {
	Value     string     // the serialized JWT placed in the carrier
	ID        string     // jti, used as the revocation key
	IssuedAt  time.Time
	ExpiresAt *time.Time // nil for non-expiring tokens
}

// Claims is what a successful verification yields.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// Codec signs and verifies HS256 session tokens bound to one secret.  It is
// immutable after construction and safe for concurrent use.
type Codec struct {
	secret      []byte
	ttl         time.Duration
	neverExpire bool
	issuer      string
	now         func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("codec: empty secret")
	}
	switch {
	case cfg.NeverExpire && cfg.TTL != 0:
		return nil, errors.New("codec: TTL and NeverExpire are mutually exclusive")
	case !cfg.NeverExpire && cfg.TTL <= 0:
		return nil, errors.New("codec: TTL must be positive unless NeverExpire is set")
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &Codec{
		secret:      secret,
		ttl:         cfg.TTL,
		neverExpire: cfg.NeverExpire,
		issuer:      cfg.Issuer,
		now:         time.Now,
	}, nil
}

// TTL reports the configured lifetime; zero means tokens never expire.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for subject.  Every call carries a fresh jti, so two
// tokens for the same subject never share a signature.
func (c *Codec) Issue(subject string) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("codec: empty subject")
	}
	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   c.issuer,
	}
	var exp *time.Time
	if !c.neverExpire {
		e := now.Add(c.ttl)
		exp = &e
		claims.ExpiresAt = jwt.NewNumericDate(e)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: claims.ID, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks signature and expiry and returns the claims.  It never
// panics or leaks parser errors: every failure is one of ErrMalformed,
// ErrInvalidSignature or ErrExpired.  A codec configured with a TTL also
// refuses tokens that carry no expiry.
func (c *Codec) Verify(raw string) (claims Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = Claims{}, ErrMalformed
		}
	}()
	if raw == "" {
		return Claims{}, ErrMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if !c.neverExpire {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	rc := &jwt.RegisteredClaims{}
	tok, perr := jwt.NewParser(opts...).ParseWithClaims(raw, rc, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if perr != nil {
		return Claims{}, classify(perr)
	}
	if !tok.Valid || rc.Subject == "" {
		return Claims{}, ErrMalformed
	}

	out := Claims{Subject: rc.Subject, ID: rc.ID}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		e := rc.ExpiresAt.Time
		out.ExpiresAt = &e
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
