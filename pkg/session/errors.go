package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session.not_found")
	ErrNotSignedIn     = errors.New("session.not_signed_in")
	ErrUserNotFound    = errors.New("session.user_not_found")
	ErrTokenGeneration = errors.New("session.token_generation_failed")
	ErrNoStore         = errors.New("session.no_store")
	ErrInvalidUser     = errors.New("session.invalid_user")
)
