package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type sessionContextKey struct{}

type stateContextKey struct{}

// requestState memoizes the session and user for one request.
type requestState struct {
	mu         sync.Mutex
	loaded     bool
	sess       *Session
	err        error
	userLoaded bool
	user       any
	userOK     bool
}

func withState(ctx context.Context) context.Context {
	return context.WithValue(ctx, stateContextKey{}, &requestState{})
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateContextKey{}).(*requestState)
	return st
}

func (st *requestState) session(load func() (*Session, error)) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.loaded {
		st.sess, st.err = load()
		st.loaded = true
	}
	return st.sess, st.err
}

func (st *requestState) peek() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess
}

// reset replaces the memoized session after sign-in or sign-out.
func (st *requestState) reset(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.loaded = true
	st.sess = s
	st.err = nil
	if s == nil {
		st.err = ErrNotSignedIn
	}
	st.userLoaded = false
	st.user = nil
	st.userOK = false
}

func (st *requestState) cachedUser() (user any, ok, loaded bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.user, st.userOK, st.userLoaded
}

func (st *requestState) storeUser(user any, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.user, st.userOK, st.userLoaded = user, ok, true
}

// WithSession puts a session into the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session loaded for the current request.
func FromContext(ctx context.Context) (*Session, bool) {
	if s, ok := ctx.Value(sessionContextKey{}).(*Session); ok && s != nil {
		return s, true
	}
	if st := stateFrom(ctx); st != nil {
		if s := st.peek(); s != nil {
			return s, true
		}
	}
	return nil, false
}

// UserIDFromContext returns uuid.Nil when nobody is signed in.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if s, ok := FromContext(ctx); ok {
		return s.UserID
	}
	return uuid.Nil
}

// LoggerExtractor adds user_id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := UserIDFromContext(ctx); id != uuid.Nil {
			return slog.String("user_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
