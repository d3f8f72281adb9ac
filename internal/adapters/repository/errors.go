package repository

import "errors"

// Sentinel errors surfaced by Store implementations.
var (
	ErrNotFound      = errors.New("user not found")
	ErrDuplicateUser = errors.New("username already taken")
	ErrNoTemplate    = errors.New("behaviour template missing")
)
