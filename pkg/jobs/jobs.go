// Package jobs holds the background units of work: tenant cache warmup,
// session sweeping, data exports, overdue invoice reminders and
// transactional emails.
//
// Each job is safe to run more than once. Missing targets are logged and
// skipped, never retried; only transient infrastructure failures are
// returned to the queue for another attempt.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/file"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

var (
	// ErrRecordNotFound is returned by lookups when the target no longer exists.
	ErrRecordNotFound = errors.New("jobs.record_not_found")
	ErrUnknownExport  = errors.New("jobs.unknown_export_kind")
	ErrMissingAccount = errors.New("jobs.missing_account")
	ErrNoRecipient    = errors.New("jobs.no_recipient")
)

type Config struct {
	ExportLinkTTL time.Duration `env:"EXPORT_LINK_TTL" envDefault:"72h"`
	URLScheme     string        `env:"APP_URL_SCHEME" envDefault:"https"`
	RootDomain    string        `env:"TENANT_ROOT_DOMAIN" envDefault:"localhost"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
}

// TenantLister lists accounts that can be resolved by requests.
type TenantLister interface {
	ListActive(ctx context.Context) ([]tenant.Tenant, error)
}

// SessionSweeper deletes sessions older than maxAge.
type SessionSweeper interface {
	SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ExportSource produces the rows of an export. Columns are snake_case names.
type ExportSource interface {
	ExportRows(ctx context.Context, accountID uuid.UUID, kind ExportKind) (columns []string, rows [][]string, err error)
}

// Invitation is what the invitation email needs.
type Invitation struct {
	MembershipID uuid.UUID
	Email        string
	Role         policy.Role
	AccountName  string
	Subdomain    string
}

// Lookup loads job targets. Methods return ErrRecordNotFound for missing targets.
type Lookup interface {
	Invitation(ctx context.Context, membershipID uuid.UUID) (*Invitation, error)
	InvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*document.Document, error)
	UserEmail(ctx context.Context, userID uuid.UUID) (string, error)
	OverdueInvoices(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// Enqueuer queues follow-up tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// Generator renders a document to PDF.
type Generator interface {
	Generate(ctx context.Context, doc document.Document) document.Result
}

// Deps are the collaborators of Runner.
type Deps struct {
	Tenants   TenantLister
	Cache     tenant.Cache
	Sessions  SessionSweeper
	Exports   ExportSource
	Lookup    Lookup
	Storage   file.Storage
	Mailer    email.EmailSender
	Documents Generator
	Queue     Enqueuer
}

// Runner executes jobs.
type Runner struct {
	Deps
	cfg Config
	log *slog.Logger
	now func() time.Time
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func New(deps Deps, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		Deps: deps,
		cfg:  cfg,
		log:  logger.Discard(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("jobs"))
	return r
}

func (r *Runner) tenantURL(subdomain, path string) string {
	host := r.cfg.RootDomain
	if subdomain != "" {
		host = subdomain + "." + host
	}
	scheme := r.cfg.URLScheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + host + path
}
