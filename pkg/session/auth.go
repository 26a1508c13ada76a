package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Auth resolves the signed-in user of type U.
type Auth[U any] struct {
	manager *Manager
	users   UserLoader[U]
	logger  *slog.Logger
}

func NewAuth[U any](manager *Manager, users UserLoader[U]) *Auth[U] {
	return &Auth[U]{manager: manager, users: users, logger: manager.logger}
}

// CurrentUser returns the user behind the request's session. Absence at any
// step reports false; store faults are logged and also report false. Within a
// request served by Manager.Middleware the lookup runs once.
func (a *Auth[U]) CurrentUser(r *http.Request) (U, bool) {
	st := stateFrom(r.Context())
	if st != nil {
		if u, ok, loaded := st.cachedUser(); loaded {
			if !ok {
				var zero U
				return zero, false
			}
			return u.(U), true
		}
	}

	u, ok := a.load(r)
	if st != nil {
		st.storeUser(u, ok)
	}
	return u, ok
}

func (a *Auth[U]) load(r *http.Request) (U, bool) {
	var zero U
	ctx := r.Context()

	s, err := a.manager.Current(r)
	if err != nil {
		if !errors.Is(err, ErrNotSignedIn) {
			a.logger.ErrorContext(ctx, "session lookup failed",
				logger.Error(err), logger.Component("session"))
		}
		return zero, false
	}

	u, err := a.users.LoadUser(ctx, s.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			a.logger.ErrorContext(ctx, "user lookup failed",
				logger.Error(err), logger.UserID(s.UserID), logger.Component("session"))
		}
		return zero, false
	}
	return u, true
}
