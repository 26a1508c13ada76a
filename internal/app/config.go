package app

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/environment"
)

// Config holds the process-level settings. Component settings live in each
// package's own Config and are loaded separately.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Name      string `env:"APP_NAME" envDefault:"billingkit"`
	LogLevel  string `env:"APP_LOG_LEVEL"`
	LogFormat string `env:"APP_LOG_FORMAT"`

	// TrustProxy makes client IP resolution honour proxy headers.
	TrustProxy bool `env:"APP_TRUST_PROXY" envDefault:"false"`
	// Migrate applies pending migrations on startup.
	Migrate bool `env:"APP_MIGRATE" envDefault:"true"`
	// TenantCache selects the backend of the tenant cache and the sign-in
	// rate limits: "redis" or "memory".
	TenantCache string `env:"APP_TENANT_CACHE" envDefault:"redis"`
	// Worker runs the task worker and scheduler in this process.
	Worker bool `env:"APP_WORKER" envDefault:"true"`

	OperatorAccountID uuid.UUID `env:"APP_OPERATOR_ACCOUNT_ID"`
}

func (c Config) Environment() environment.Environment {
	return environment.Parse(c.Env)
}

// level returns the configured level, or ok=false when unset or invalid.
func (c Config) level() (slog.Level, bool) {
	if c.LogLevel == "" {
		return slog.LevelInfo, false
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, false
	}
	return l, true
}
