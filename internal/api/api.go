// Package api is the JSON HTTP surface of the service.
//
// Every response uses the handler.JSONResponse envelope. Tenant-scoped routes
// require a signed-in user, a resolved tenant and a membership in it; the
// membership role becomes the policy.Actor of the request.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/binder"
	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/clientip"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/metrics"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/ratelimiter"
	"github.com/dmitrymomot/billingkit/pkg/requestid"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

// TenantSessionKey is the session data key holding the selected tenant id.
const TenantSessionKey = "tenant_id"

type Config struct {
	// OperatorAccountID is the account whose owners may read the admin dashboard.
	OperatorAccountID uuid.UUID `env:"APP_OPERATOR_ACCOUNT_ID"`
	ArchiveDocuments  bool      `env:"PDF_ARCHIVE" envDefault:"true"`
}

type Users interface {
	session.UserLoader[*store.User]
	Authenticate(ctx context.Context, email, password string) (*store.User, error)
	ByEmail(ctx context.Context, email string) (*store.User, error)
}

// Tenants loads tenants and the caller's role in them.
type Tenants interface {
	tenant.Provider
	tenant.MembershipChecker
	Role(ctx context.Context, userID, tenantID uuid.UUID) (policy.Role, error)
}

type Invoices interface {
	Get(ctx context.Context, accountID, id uuid.UUID) (*store.Invoice, error)
	Update(ctx context.Context, accountID, id uuid.UUID, upd store.InvoiceUpdate) (*store.Invoice, error)
	Document(ctx context.Context, accountID, id uuid.UUID, kind document.Kind) (*document.Document, error)
}

type Generator interface {
	Generate(ctx context.Context, doc document.Document) document.Result
}

type Archiver interface {
	Archive(ctx context.Context, doc document.Document, res document.Result) (string, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

type Dashboard interface {
	All(ctx context.Context) (metrics.DashboardSummary, error)
}

// Deps are the collaborators of the API. Archiver, webhooks, telemetry and
// the sign-in limiter are optional.
type Deps struct {
	Sessions    *session.Manager
	Users       Users
	Tenants     Tenants
	TenantCache tenant.Cache
	TenantCfg   tenant.Config
	Memberships *membership.Service
	Invoices    Invoices
	Documents   Generator
	Archiver    Archiver
	Jobs        Enqueuer
	Dashboard   Dashboard
	Stripe      http.Handler
	Paddle      http.Handler
	Telemetry   *telemetry.Collector
	ClientIP    clientip.Resolver
	SignIn      *ratelimiter.Bucket
	Health      []httpserver.Check
}

// API holds the route handlers.
type API struct {
	Deps
	cfg      Config
	log      *slog.Logger
	auth     *session.Auth[*store.User]
	switcher *tenant.Switcher
	onError  handler.ErrorHandler[handler.Context]
}

type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func New(deps Deps, cfg Config, opts ...Option) *API {
	a := &API{Deps: deps, cfg: cfg, log: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	if a.TenantCache == nil {
		a.TenantCache = tenant.NewMemoryCache(a.TenantCfg.CacheTTL)
	}
	a.auth = session.NewAuth[*store.User](a.Sessions, a.Users)
	a.switcher = tenant.NewSwitcher(a.Tenants, a.TenantCache)
	a.onError = handler.NewErrorHandler(a.log)
	return a
}

// Router builds the chi router with the middleware chain
// requestid, clientip, logger, session, tenant.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		a.ClientIP.Middleware,
		a.instrument,
	)

	r.Get("/health", httpserver.HealthHandler(a.log, a.Health...))
	if a.Telemetry != nil {
		r.Handle("/metrics", a.Telemetry.Handler())
	}
	r.Route("/webhooks", func(r chi.Router) {
		if a.Stripe != nil {
			r.Method(http.MethodPost, "/stripe", a.Stripe)
		}
		if a.Paddle != nil {
			r.Method(http.MethodPost, "/paddle", a.Paddle)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(a.Sessions.Middleware, a.tenantMiddleware())

		r.With(a.limitSignIn).Post("/auth/sign-in", wrapJSON(a, a.signIn))
		r.Post("/auth/sign-out", wrap(a, a.signOut))

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)
			r.Get("/me", wrap(a, a.me))
			r.Post("/tenants/switch", wrapJSON(a, a.switchTenant))
			r.With(a.requireOperator).Get("/admin/metrics", wrap(a, a.adminMetrics))
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser, a.requireActor)

			r.Get("/memberships", wrap(a, a.listMemberships))
			r.Post("/memberships", wrapJSON(a, a.invite))
			r.Post("/memberships/leave", wrap(a, a.leave))
			r.Patch("/memberships/{id}", wrapJSON(a, a.changeRole))
			r.Delete("/memberships/{id}", wrapPath(a, a.removeMembership))

			r.Get("/invoices/{id}", wrapPath(a, a.showInvoice))
			r.Patch("/invoices/{id}", wrapJSON(a, a.updateInvoice))
			r.Post("/invoices/{id}/remind", wrapPath(a, a.remindInvoice))
			r.Get("/invoices/{id}/pdf", wrapPath(a, a.invoicePDF))
			r.Get("/estimates/{id}/pdf", wrapPath(a, a.estimatePDF))

			r.Post("/exports", wrapJSON(a, a.createExport))
		})
	})

	return r
}

func wrap[R any](a *API, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h, handler.WithErrorHandler[handler.Context, R](a.onError))
}

func wrapJSON[R any](a *API, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binder.JSON(), binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, R](a.onError),
	)
}

func wrapPath[R any](a *API, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, R](a.onError),
	)
}

// IDRequest binds the {id} path parameter.
type IDRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
}
