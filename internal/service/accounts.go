package service

import (
	"context"
	"strconv"

	"github.com/iliyamo/authgate/internal/model"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/utils"
)

// Accounts adapts the account store for the gate and the lifecycle: it
// resolves token subjects to accounts and owns password hashing.
type Accounts struct {
	store  repository.AccountStore
	live   repository.AccountStore
	hasher utils.Hasher
}

func NewAccounts(store repository.AccountStore, hasher utils.Hasher) *Accounts {
	return &Accounts{store: store, live: repository.Uncached(store), hasher: hasher}
}

// Store exposes the underlying store for handlers that edit profiles.
func (a *Accounts) Store() repository.AccountStore { return a.store }

// Resolve looks up the account named by a token subject.  A subject that is
// not a valid id resolves to ErrNotFound.  The lookup skips the account
// cache so an account deleted anywhere stops resolving at once.
func (a *Accounts) Resolve(ctx context.Context, subject string) (model.Account, error) {
	id, err := ParseSubject(subject)
	if err != nil {
		return model.Account{}, ErrNotFound
	}
	acct, err := a.live.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, storageErr("accounts.Resolve", err)
	}
	return acct, nil
}

// HashPassword returns a freshly salted hash of plaintext.
func (a *Accounts) HashPassword(plaintext string) (string, error) {
	return a.hasher.HashPassword(plaintext)
}

// VerifyPassword compares candidate with a stored hash.
func (a *Accounts) VerifyPassword(candidate, storedHash string) bool {
	return a.hasher.VerifyPassword(candidate, storedHash)
}

// Subject renders an account id as a token subject.
func Subject(id uint64) string { return strconv.FormatUint(id, 10) }

// ParseSubject is the inverse of Subject.  Zero is not a valid id.
func ParseSubject(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
