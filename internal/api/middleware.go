package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/pkg/clientip"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/ratelimiter"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

// instrument logs every request and records it in telemetry under its route pattern.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		a.Telemetry.HTTPRequest(r.Method, route, status, elapsed)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.log.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status_code", status),
			slog.Int("bytes", ww.BytesWritten()),
			logger.Duration(elapsed),
			logger.Component("http"),
		)
	})
}

// tenantMiddleware resolves the tenant from the subdomain first and the
// session second. Session-sourced tenants are re-checked for membership.
func (a *API) tenantMiddleware() func(http.Handler) http.Handler {
	resolver := tenant.Chain(
		tenant.NewSubdomainResolver(a.TenantCfg.RootDomain, a.TenantCfg.Reserved...),
		tenant.NewSessionResolver(func(r *http.Request) (string, bool) {
			return a.Sessions.Value(r, TenantSessionKey)
		}),
	)
	return tenant.Middleware(resolver, a.Tenants,
		tenant.WithCache(a.TenantCache),
		tenant.WithLogger(a.log),
		tenant.WithMembershipCheck(a.Tenants, session.UserIDFromContext),
		tenant.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			a.onError(handler.NewContext(w, r), mapError(err))
		}),
	)
}

// limitSignIn throttles sign-in attempts per client IP. Without a bucket it is a no-op.
func (a *API) limitSignIn(next http.Handler) http.Handler {
	if a.SignIn == nil {
		return next
	}
	return ratelimiter.Middleware(a.SignIn,
		ratelimiter.Composite(
			func(*http.Request) string { return "signin" },
			clientip.FromRequest,
		),
		ratelimiter.WithLogger(a.log),
		ratelimiter.WithResponder(func(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result, err error) {
			if err != nil {
				a.onError(handler.NewContext(w, r), errors.Join(handler.ErrUnavailable, err))
				return
			}
			a.onError(handler.NewContext(w, r), handler.ErrTooManyRequests)
		}),
	)(next)
}

// requireUser admits requests whose session belongs to an existing user.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.auth.CurrentUser(r); !ok {
			a.onError(handler.NewContext(w, r), handler.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireActor needs a resolved tenant and the caller's membership in it.
func (a *API) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		t, ok := tenant.FromContext(ctx)
		if !ok {
			a.onError(handler.NewContext(w, r), mapError(tenant.ErrNoTenantInContext))
			return
		}

		userID := session.UserIDFromContext(ctx)
		role, err := a.Tenants.Role(ctx, userID, t.ID)
		if err != nil {
			a.log.WarnContext(ctx, "no membership in resolved tenant",
				logger.UserID(userID), logger.TenantID(t.ID), logger.Error(err))
			a.onError(handler.NewContext(w, r), handler.ErrForbidden)
			return
		}

		ctx = policy.WithActor(ctx, policy.Actor{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOperator admits owners of the operator account only.
func (a *API) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if a.cfg.OperatorAccountID == uuid.Nil {
			a.onError(handler.NewContext(w, r), handler.ErrNotFound)
			return
		}
		role, err := a.Tenants.Role(ctx, session.UserIDFromContext(ctx), a.cfg.OperatorAccountID)
		if err != nil || role != policy.Owner {
			a.onError(handler.NewContext(w, r), handler.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// scope returns the actor and the tenant id of a request that passed requireActor.
func scope(ctx context.Context) (policy.Actor, uuid.UUID, error) {
	actor, ok := policy.ActorFromContext(ctx)
	if !ok {
		return policy.Actor{}, uuid.Nil, handler.ErrForbidden
	}
	id := tenant.IDFromContext(ctx)
	if id == uuid.Nil {
		return policy.Actor{}, uuid.Nil, errors.Join(handler.ErrNotFound, tenant.ErrNoTenantInContext)
	}
	return actor, id, nil
}
