package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/metrics"
	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/utils"
)

// EventPublisher receives account events after lifecycle steps.  Publish
// must not block the request for long; delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.AccountEvent) error
}

// Registration is the input of Register.
type Registration struct {
	Username string
	Email    string
	Password string
	Name     string
	Age      *int
}

// Session is an issued credential together with its account.
type Session struct {
	Account model.Account
	Token   utils.Token
}

// Lifecycle implements register, login, logout and account deletion.
type Lifecycle struct {
	codec       *utils.Codec
	accounts    *Accounts
	revocations repository.RevocationList
	events      EventPublisher
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	now         func() time.Time

	// decoy is compared against when the email is unknown so that both
	// login failures spend one bcrypt comparison.
	decoy string
}

// LifecycleOptions carries the optional collaborators of a Lifecycle.
type LifecycleOptions struct {
	Revocations repository.RevocationList
	Events      EventPublisher
	Metrics     *metrics.Metrics
	Logger      logrus.FieldLogger
}

func NewLifecycle(codec *utils.Codec, accounts *Accounts, opts LifecycleOptions) *Lifecycle {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	decoy, err := accounts.HashPassword("decoy-password")
	if err != nil {
		panic(fmt.Sprintf("service: hash decoy password: %v", err))
	}
	return &Lifecycle{
		codec:       codec,
		accounts:    accounts,
		revocations: opts.Revocations,
		events:      opts.Events,
		metrics:     opts.Metrics,
		log:         log,
		now:         time.Now,
		decoy:       decoy,
	}
}

// Register creates an account and issues its first token.
func (l *Lifecycle) Register(ctx context.Context, r Registration, remoteIP string) (Session, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Username == "" || r.Email == "" || r.Password == "" {
		l.metrics.Lifecycle("register", "invalid")
		return Session{}, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	hash, err := l.accounts.HashPassword(r.Password)
	if err != nil {
		l.metrics.Lifecycle("register", "invalid")
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return Session{}, fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return Session{}, err
	}

	id, err := l.accounts.Store().Create(ctx, model.NewAccount{
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(r.Name),
		Age:          r.Age,
	})
	if err != nil {
		err = storageErr("lifecycle.Register", err)
		if errors.Is(err, ErrDuplicateAccount) {
			l.metrics.Lifecycle("register", "duplicate")
		} else {
			l.metrics.Lifecycle("register", "error")
		}
		return Session{}, err
	}

	acct, err := l.accounts.Store().GetByID(ctx, id)
	if err != nil {
		l.metrics.Lifecycle("register", "error")
		return Session{}, storageErr("lifecycle.Register", err)
	}
	tok, err := l.codec.Issue(Subject(id))
	if err != nil {
		l.metrics.Lifecycle("register", "error")
		return Session{}, err
	}

	l.metrics.Lifecycle("register", "success")
	l.log.WithField("account_id", id).Info("account registered")
	l.publish(ctx, model.AccountEvent{
		Kind: model.EventRegistered, AccountID: id, Email: acct.Email, TokenID: tok.ID, RemoteIP: remoteIP,
	})
	return Session{Account: acct, Token: tok}, nil
}

// Login checks credentials and issues a new token.  It returns ErrNotFound
// or ErrWrongPassword; callers must present both the same way.
func (l *Lifecycle) Login(ctx context.Context, email, password, remoteIP string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acct, err := l.accounts.Store().GetByEmail(ctx, email)
	if err != nil {
		err = storageErr("lifecycle.Login", err)
		if errors.Is(err, ErrNotFound) {
			l.accounts.VerifyPassword(password, l.decoy)
			l.loginFailed(ctx, email, remoteIP, "not_found")
		} else {
			l.metrics.Lifecycle("login", "error")
		}
		return Session{}, err
	}
	if !l.accounts.VerifyPassword(password, acct.PasswordHash) {
		l.loginFailed(ctx, email, remoteIP, "wrong_password")
		return Session{}, ErrWrongPassword
	}

	tok, err := l.codec.Issue(Subject(acct.ID))
	if err != nil {
		l.metrics.Lifecycle("login", "error")
		return Session{}, err
	}
	l.metrics.Lifecycle("login", "success")
	l.log.WithField("account_id", acct.ID).Info("login succeeded")
	l.publish(ctx, model.AccountEvent{
		Kind: model.EventLoggedIn, AccountID: acct.ID, Email: acct.Email, TokenID: tok.ID, RemoteIP: remoteIP,
	})
	return Session{Account: acct, Token: tok}, nil
}

func (l *Lifecycle) loginFailed(ctx context.Context, email, remoteIP, result string) {
	l.metrics.Lifecycle("login", result)
	l.log.WithField("reason", result).Info("login failed")
	l.publish(ctx, model.AccountEvent{Kind: model.EventLoginFail, Email: email, RemoteIP: remoteIP})
}

// Logout ends the session carried by raw.  Without a revocation list this
// only lets the caller clear the carrier: a copy of the token stays valid
// until it expires.  With one, the token id is recorded and the gate
// refuses it from then on.  Invalid or absent tokens, and tokens whose
// subject is not an account id, are not an error and revoke nothing.
func (l *Lifecycle) Logout(ctx context.Context, raw, remoteIP string) error {
	if raw == "" {
		l.metrics.Lifecycle("logout", "anonymous")
		return nil
	}
	claims, err := l.codec.Verify(raw)
	if err != nil {
		l.metrics.Lifecycle("logout", "anonymous")
		return nil
	}
	id, err := ParseSubject(claims.Subject)
	if err != nil {
		l.metrics.Lifecycle("logout", "anonymous")
		return nil
	}

	if l.revocations != nil && claims.ID != "" {
		if err := l.revocations.Revoke(ctx, claims.ID, id, claims.ExpiresAt); err != nil {
			l.metrics.Lifecycle("logout", "error")
			return storageErr("lifecycle.Logout", err)
		}
	}
	l.metrics.Lifecycle("logout", "success")
	l.log.WithField("account_id", id).Info("logged out")
	l.publish(ctx, model.AccountEvent{
		Kind: model.EventLoggedOut, AccountID: id, TokenID: claims.ID, RemoteIP: remoteIP,
	})
	return nil
}

// DeleteAccount removes the authenticated account and revokes the token
// it was authenticated with.
func (l *Lifecycle) DeleteAccount(ctx context.Context, id Identity, remoteIP string) error {
	if err := l.accounts.Store().Delete(ctx, id.AccountID); err != nil {
		l.metrics.Lifecycle("delete", "error")
		return storageErr("lifecycle.DeleteAccount", err)
	}
	if l.revocations != nil && id.TokenID != "" {
		if err := l.revocations.Revoke(ctx, id.TokenID, id.AccountID, id.ExpiresAt); err != nil {
			l.log.WithError(err).Warn("revoke after delete failed")
		}
	}
	l.metrics.Lifecycle("delete", "success")
	l.log.WithField("account_id", id.AccountID).Info("account deleted")
	l.publish(ctx, model.AccountEvent{
		Kind: model.EventDeleted, AccountID: id.AccountID, Email: id.Account.Email, TokenID: id.TokenID, RemoteIP: remoteIP,
	})
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, ev model.AccountEvent) {
	if l.events == nil {
		return
	}
	ev.OccurredAt = l.now().UTC().Format(time.RFC3339)
	if err := l.events.Publish(ctx, ev); err != nil {
		l.log.WithError(err).WithField("kind", ev.Kind).Warn("publish account event failed")
	}
}
