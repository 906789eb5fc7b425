package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized: no credential was presented or its owner is gone.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMissing: a credential was presented but matches no token.
	ErrTokenMissing = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)
