package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists sessions. GetByToken returns ErrSessionNotFound when no
// session matches.
type Store interface {
	Create(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error
	// DeleteOlderThan removes sessions created before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserLoader loads the user a session belongs to. Missing users are
// reported as ErrUserNotFound.
type UserLoader[U any] interface {
	LoadUser(ctx context.Context, id uuid.UUID) (U, error)
}

// UserLoaderFunc adapts a function to UserLoader.
type UserLoaderFunc[U any] func(ctx context.Context, id uuid.UUID) (U, error)

func (f UserLoaderFunc[U]) LoadUser(ctx context.Context, id uuid.UUID) (U, error) {
	return f(ctx, id)
}
