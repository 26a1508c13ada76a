package session

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Middleware installs the per-request memo and loads the session once.
// Requests without a valid session proceed anonymously.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(withState(r.Context()))

		if _, err := m.Current(r); err != nil && !errors.Is(err, ErrNotSignedIn) {
			m.logger.ErrorContext(r.Context(), "failed to load session",
				logger.Error(err), logger.Component("session"))
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth responds 401 unless the request carries a valid session.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.Current(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
