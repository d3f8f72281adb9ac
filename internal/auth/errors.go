package auth

import "errors"

// Sentinel kinds for credential and session failures.
var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password is too long")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token has expired")
	ErrNoSession       = errors.New("session not found")
)
