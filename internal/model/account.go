package model

import "time"

// Account represents a row in the `accounts` table.  The password is only
// ever held as a bcrypt hash and is never serialized.
//
// Fields:
//  ID           – storage-assigned identifier; the token subject.
//  Username     – unique handle.
//  Email        – unique, stored lower-cased.
//  PasswordHash – bcrypt hash.
//  Name, Age    – optional profile fields.
type Account struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Age          *int      `json:"age,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAccount is the input to account creation.  PasswordHash must already
// be hashed.
type NewAccount struct {
	Username     string
	Email        string
	PasswordHash string
	Name         string
	Age          *int
}

// ProfileUpdate carries the editable profile fields.  Empty strings and a
// nil Age leave the stored value unchanged.
type ProfileUpdate struct {
	Username string
	Email    string
	Name     string
	Age      *int
}
