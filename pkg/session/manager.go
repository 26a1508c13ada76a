package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clientip"
	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Manager signs users in and out and looks sessions up.
type Manager struct {
	store     Store
	transport Transport
	config    Config
	logger    *slog.Logger
	clientIP  func(r *http.Request) string
	now       func() time.Time
}

func New(opts ...Option) *Manager {
	m := &Manager{
		config:   DefaultConfig(),
		logger:   logger.Discard(),
		clientIP: clientip.FromRequest,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.transport == nil {
		m.transport = NewCompositeTransport(
			NewCookieTransport(m.config.CookieName, m.config.CookieDomain, m.config.Secure),
			NewHeaderTransport(m.config.HeaderName),
		)
	}
	return m
}

// SignIn creates a session for userID bound to the request's client address
// and user agent. A session already referenced by the request is deleted so a
// token cannot survive a change of identity.
func (m *Manager) SignIn(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*Session, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUser
	}
	ctx := r.Context()

	if token, err := m.transport.GetToken(r); err == nil {
		if prior, err := m.store.GetByToken(ctx, token); err == nil {
			if err := m.store.Delete(ctx, prior.ID); err != nil {
				m.logger.WarnContext(ctx, "failed to delete prior session",
					logger.Error(err), logger.Component("session"))
			}
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:             uuid.New(),
		Token:          token,
		UserID:         userID,
		IP:             m.clientIP(r),
		UserAgent:      r.UserAgent(),
		Data:           make(map[string]any),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	if err := m.transport.SetToken(w, s.Token, m.config.MaxAge); err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return nil, err
	}

	if st := stateFrom(ctx); st != nil {
		st.reset(s)
	}
	m.logger.InfoContext(ctx, "user signed in",
		logger.UserID(userID), logger.Component("session"))
	return s, nil
}

// SignOut deletes the current session and clears the token. Signing out
// without a session is not an error.
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	s, err := m.Current(r)
	switch {
	case errors.Is(err, ErrNotSignedIn):
	case err != nil:
		return err
	default:
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return err
		}
	}

	if st := stateFrom(ctx); st != nil {
		st.reset(nil)
	}
	return m.transport.ClearToken(w)
}

// Current returns the session referenced by the request. Absence of a token or
// of a matching record is ErrNotSignedIn. Age is not checked here.
func (m *Manager) Current(r *http.Request) (*Session, error) {
	if st := stateFrom(r.Context()); st != nil {
		return st.session(func() (*Session, error) { return m.lookup(r) })
	}
	return m.lookup(r)
}

func (m *Manager) lookup(r *http.Request) (*Session, error) {
	token, err := m.transport.GetToken(r)
	if err != nil {
		return nil, ErrNotSignedIn
	}

	s, err := m.store.GetByToken(r.Context(), token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SweepExpired deletes sessions created more than maxAge ago and returns the
// number removed. A non-positive maxAge falls back to the configured MaxAge.
func (m *Manager) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = m.config.MaxAge
	}
	return m.store.DeleteOlderThan(ctx, m.now().Add(-maxAge))
}

// SetValue stores key in the session data and persists it.
func (m *Manager) SetValue(ctx context.Context, s *Session, key string, value any) error {
	if s == nil {
		return ErrNotSignedIn
	}
	data := maps.Clone(s.Data)
	if data == nil {
		data = make(map[string]any)
	}
	data[key] = value

	if err := m.store.UpdateData(ctx, s.ID, data); err != nil {
		return err
	}
	s.set(key, value)
	return nil
}

// Value reads a string from the current session's data.
func (m *Manager) Value(r *http.Request, key string) (string, bool) {
	s, err := m.Current(r)
	if err != nil {
		return "", false
	}
	return s.GetString(key)
}

func (m *Manager) Config() Config {
	return m.config
}
