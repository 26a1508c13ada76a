package session

import "time"

type Config struct {
	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN"`
	// Secure sets the Secure flag on the session cookie. Enable outside local development.
	Secure bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`
	// MaxAge is both the cookie lifetime and the sweep threshold.
	MaxAge        time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"24h"`
	// HeaderName carries bearer tokens for API clients.
	HeaderName string `env:"SESSION_HEADER_NAME" envDefault:"Authorization"`
}

func DefaultConfig() Config {
	return Config{
		CookieName:    "sid",
		MaxAge:        30 * 24 * time.Hour,
		SweepInterval: 24 * time.Hour,
		HeaderName:    "Authorization",
	}
}
