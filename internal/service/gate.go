package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/metrics"
	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/utils"
)

// Reason says why the gate rejected a request.  Reasons feed logs and
// metrics only; every rejection looks the same to the client.
type Reason string

const (
	ReasonNoToken          Reason = "no_token"
	ReasonMalformed        Reason = "malformed"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpired          Reason = "expired"
	ReasonRevoked          Reason = "revoked"
	ReasonAccountNotFound  Reason = "account_not_found"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	AccountID uint64
	TokenID   string
	ExpiresAt *time.Time
	Account   model.Account
}

// Decision is the outcome of Authenticate: either Authorized with an
// Identity or rejected with a Reason.
type Decision struct {
	Authorized bool
	Identity   Identity
	Reason     Reason
}

// Authorized builds an accepting decision.
func Authorized(id Identity) Decision { return Decision{Authorized: true, Identity: id} }

// Rejected builds a refusing decision.
func Rejected(r Reason) Decision { return Decision{Reason: r} }

// Gate decides, per request, whether a carried token belongs to a live
// account.  It holds no per-request state and is safe for concurrent use.
type Gate struct {
	codec       *utils.Codec
	accounts    *Accounts
	revocations repository.RevocationList // nil when revocation is disabled
	timeout     time.Duration
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

// GateOptions carries the optional collaborators of a Gate.
type GateOptions struct {
	Revocations   repository.RevocationList
	LookupTimeout time.Duration
	Metrics       *metrics.Metrics
	Logger        logrus.FieldLogger
}

func NewGate(codec *utils.Codec, accounts *Accounts, opts GateOptions) *Gate {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{
		codec:       codec,
		accounts:    accounts,
		revocations: opts.Revocations,
		timeout:     opts.LookupTimeout,
		metrics:     opts.Metrics,
		log:         log,
	}
}

// Authenticate verifies raw and resolves its subject.  An empty raw value
// means the carrier was absent.  A non-nil error is only ever a storage
// failure (ErrStorageUnavailable) or a cancelled context; it never means the
// account is missing.
func (g *Gate) Authenticate(ctx context.Context, raw string) (Decision, error) {
	if raw == "" {
		return g.reject(ReasonNoToken, nil), nil
	}
	claims, err := g.codec.Verify(raw)
	if err != nil {
		return g.reject(reasonFor(err), nil), nil
	}
	id, err := ParseSubject(claims.Subject)
	if err != nil {
		return g.reject(ReasonMalformed, nil), nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.revocations != nil && claims.ID != "" {
		revoked, err := g.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return g.fail(storageErr("gate.IsRevoked", err))
		}
		if revoked {
			return g.reject(ReasonRevoked, logrus.Fields{"account_id": id}), nil
		}
	}

	acct, err := g.accounts.Resolve(ctx, claims.Subject)
	switch {
	case errors.Is(err, ErrNotFound):
		return g.reject(ReasonAccountNotFound, logrus.Fields{"account_id": id}), nil
	case err != nil:
		return g.fail(err)
	}

	g.metrics.Decision("authorized", "")
	return Authorized(Identity{
		AccountID: acct.ID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt,
		Account:   acct,
	}), nil
}

func (g *Gate) reject(r Reason, fields logrus.Fields) Decision {
	g.metrics.Decision("rejected", string(r))
	g.log.WithFields(fields).WithField("reason", r).Debug("session rejected")
	return Rejected(r)
}

func (g *Gate) fail(err error) (Decision, error) {
	g.metrics.Decision("error", "storage")
	g.log.WithError(err).Warn("session lookup failed")
	return Decision{}, err
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, utils.ErrExpired):
		return ReasonExpired
	case errors.Is(err, utils.ErrInvalidSignature):
		return ReasonInvalidSignature
	default:
		return ReasonMalformed
	}
}
