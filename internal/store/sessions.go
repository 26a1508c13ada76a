package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/session"
)

// SessionStore implements session.Store.
type SessionStore struct {
	db DB
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	var userID *uuid.UUID
	if sess.UserID != uuid.Nil {
		userID = &sess.UserID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, token, user_id, ip, user_agent, data, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.Token, userID, sess.IP, sess.UserAgent, sess.Data, sess.CreatedAt, sess.LastActivityAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, session.ErrSessionNotFound
	}
	var (
		sess   session.Session
		userID *uuid.UUID
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, token, user_id, ip, user_agent, data, created_at, last_activity_at
		FROM sessions WHERE token = $1`, token).
		Scan(&sess.ID, &sess.Token, &userID, &sess.IP, &sess.UserAgent, &sess.Data, &sess.CreatedAt, &sess.LastActivityAt)
	if pg.IsNotFoundError(err) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if userID != nil {
		sess.UserID = *userID
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET data = $2, last_activity_at = now() WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
