package store

import "errors"

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrDuplicateHash is returned when inserting a token whose hash collides
// with an existing row. Callers regenerate the secret and retry.
var ErrDuplicateHash = errors.New("duplicate token hash")

// ErrDuplicateEmail is returned when creating a user with an email that is
// already taken.
var ErrDuplicateEmail = errors.New("duplicate email")
