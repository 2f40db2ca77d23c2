// Package service implements the session authentication gate and the
// credential lifecycle (register, login, logout) on top of the token codec
// and the account store.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/authgate/internal/repository"
)

var (
	// ErrNotFound: no account for the given email or id.
	ErrNotFound = errors.New("account not found")
	// ErrWrongPassword: the account exists but the password does not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrDuplicateAccount: username or email already taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidInput: a required field is missing or unusable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageUnavailable: a storage round-trip failed or timed out.  It is
	// retryable and never means "not found".
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// storageErr classifies an error coming back from a store.  Normal negative
// results are mapped to service errors; everything else, including a
// deadline hit while waiting on storage, becomes ErrStorageUnavailable.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateAccount):
		return ErrDuplicateAccount
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
}
