package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// ErrorHandler renders resolution failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures Middleware.
type Option func(*middlewareConfig)

type middlewareConfig struct {
	cache        Cache
	errorHandler ErrorHandler
	logger       *slog.Logger
	members      MembershipChecker
	userID       func(ctx context.Context) uuid.UUID
}

// WithCache enables caching of resolved tenants.
func WithCache(c Cache) Option {
	return func(cfg *middlewareConfig) {
		if c != nil {
			cfg.cache = c
		}
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(cfg *middlewareConfig) {
		if h != nil {
			cfg.errorHandler = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *middlewareConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMembershipCheck re-validates session-sourced tenants against the
// current user's memberships, so a revoked membership stops resolving
// immediately instead of at the next sign-in.
func WithMembershipCheck(checker MembershipChecker, userID func(ctx context.Context) uuid.UUID) Option {
	return func(cfg *middlewareConfig) {
		cfg.members = checker
		cfg.userID = userID
	}
}

// Middleware resolves the tenant and stores it in the request context.
// Unresolvable requests proceed without a tenant.
func Middleware(resolver Resolver, provider Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		cache:        noopCache{},
		errorHandler: defaultErrorHandler,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := resolver(r)
			switch {
			case errors.Is(err, ErrNoIdentifier):
				next.ServeHTTP(w, r)
				return
			case err != nil:
				cfg.errorHandler(w, r, err)
				return
			}

			t, err := cfg.lookup(ctx, provider, id)
			if errors.Is(err, ErrTenantNotFound) {
				cfg.logger.DebugContext(ctx, "tenant not found",
					slog.String("source", string(id.Source)),
					slog.String("identifier", id.Value),
					logger.Component("tenant"))
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			if !t.Active {
				cfg.errorHandler(w, r, ErrInactiveTenant)
				return
			}

			if id.Source == SourceSession && cfg.members != nil {
				member, err := cfg.members.HasMembership(ctx, cfg.userID(ctx), t.ID)
				if err != nil {
					cfg.errorHandler(w, r, err)
					return
				}
				if !member {
					cfg.logger.WarnContext(ctx, "session tenant without membership ignored",
						logger.TenantID(t.ID), logger.Component("tenant"))
					next.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(ctx, t)))
		})
	}
}

func (cfg *middlewareConfig) lookup(ctx context.Context, provider Provider, id Identifier) (*Tenant, error) {
	key := CacheKey(id)
	if t, ok := cfg.cache.Get(ctx, key); ok {
		return t, nil
	}

	var (
		t   *Tenant
		err error
	)
	switch id.Source {
	case SourceSubdomain:
		t, err = provider.BySubdomain(ctx, id.Value)
	case SourceSession:
		var tid uuid.UUID
		if tid, err = uuid.Parse(id.Value); err != nil {
			return nil, errors.Join(ErrInvalidIdentifier, err)
		}
		t, err = provider.ByID(ctx, tid)
	default:
		return nil, ErrInvalidIdentifier
	}
	if err != nil {
		return nil, err
	}

	cfg.cache.Set(ctx, key, t)
	return t, nil
}

// RequireTenant rejects requests that reached it without a resolved tenant.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "tenant not found", http.StatusNotFound)
	case errors.Is(err, ErrInactiveTenant), errors.Is(err, ErrAccessDenied):
		http.Error(w, "tenant access denied", http.StatusForbidden)
	case errors.Is(err, ErrInvalidIdentifier):
		http.Error(w, "invalid tenant identifier", http.StatusBadRequest)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
