package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/clientip"
)

// Option configures a Manager.
type Option func(*Manager)

func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

func WithTransport(transport Transport) Option {
	return func(m *Manager) {
		m.transport = transport
	}
}

func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClientIP sets how the client address is read at sign-in.
func WithClientIP(res clientip.Resolver) Option {
	return func(m *Manager) {
		m.clientIP = res.GetIP
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
