package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	return t, ok && t != nil
}

// IDFromContext returns uuid.Nil when no tenant was resolved.
func IDFromContext(ctx context.Context) uuid.UUID {
	if t, ok := FromContext(ctx); ok {
		return t.ID
	}
	return uuid.Nil
}

// LoggerExtractor adds tenant_id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if t, ok := FromContext(ctx); ok {
			return slog.String("tenant_id", t.ID.String()), true
		}
		return slog.Attr{}, false
	}
}
