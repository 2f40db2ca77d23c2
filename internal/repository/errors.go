// Package repository holds the account, post and revocation stores.  The
// sentinel errors below let higher layers tell a normal negative result
// apart from a storage failure.
package repository

import "errors"

// ErrNotFound is a normal negative lookup result, never a failure.
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned when a username or email is already taken.
// Handlers translate it into an "already exists" response.
var ErrDuplicateAccount = errors.New("account already exists")
