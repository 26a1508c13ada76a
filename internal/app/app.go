// Package app assembles the service from its packages and runs the HTTP
// server, the task worker and the scheduler until the context ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingkit/internal/api"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/clientip"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/file"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/membership"
	"github.com/dmitrymomot/billingkit/pkg/metrics"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/ratelimiter"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/requestid"
	"github.com/dmitrymomot/billingkit/pkg/session"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

var ErrConfig = errors.New("app.config_failed")

// configs gathers every component configuration.
type configs struct {
	app       Config
	pg        pg.Config
	redis     redis.Config
	http      httpserver.Config
	session   session.Config
	tenant    tenant.Config
	stripe    subscription.StripeConfig
	paddle    subscription.PaddleConfig
	email     email.Config
	storage   file.S3Config
	document  document.Config
	queue     queue.Config
	jobs      jobs.Config
	telemetry telemetry.Config
	signIn    ratelimiter.Config
}

func loadConfigs() (configs, error) {
	var c configs
	err := errors.Join(
		config.Load(&c.app),
		config.Load(&c.pg),
		config.Load(&c.redis),
		config.Load(&c.http),
		config.Load(&c.session),
		config.Load(&c.tenant),
		config.Load(&c.stripe),
		config.Load(&c.paddle),
		config.Load(&c.email),
		config.Load(&c.storage),
		config.Load(&c.document),
		config.Load(&c.queue),
		config.Load(&c.jobs),
		config.Load(&c.telemetry),
		config.Load(&c.signIn),
	)
	if err != nil {
		return configs{}, errors.Join(ErrConfig, err)
	}
	return c, nil
}

// NewLogger builds the process logger with request, tenant and user
// attributes attached from context.
func NewLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithOutput(os.Stdout),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
			session.LoggerExtractor(),
		),
	}
	if l, ok := cfg.level(); ok {
		opts = append(opts, logger.WithLevel(l))
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}

// Run loads the configuration, connects the dependencies and blocks until ctx
// is cancelled or a component fails.
func Run(ctx context.Context) error {
	c, err := loadConfigs()
	if err != nil {
		return err
	}

	log := NewLogger(c.app)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, c.pg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if c.app.Migrate {
		if err := pg.Migrate(ctx, pool, store.Migrations, store.MigrationsDir, c.pg, log); err != nil {
			return err
		}
	}

	health := []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}}

	shared, err := newCaches(ctx, c, &health)
	if err != nil {
		return err
	}
	defer shared.close()

	svc, cleanup, err := build(ctx, c, pool, shared.tenants, log)
	if err != nil {
		return err
	}
	defer cleanup()
	svc.api.Health = health

	if svc.api.SignIn, err = ratelimiter.NewBucket(shared.limits, c.signIn); err != nil {
		return errors.Join(ErrConfig, err)
	}

	router := api.New(svc.api, api.Config{
		OperatorAccountID: c.app.OperatorAccountID,
		ArchiveDocuments:  c.document.ArchiveDocuments,
	}, api.WithLogger(log)).Router()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(c.http, httpserver.WithLogger(log)).Run(ctx, router)
	})
	if c.app.Worker {
		g.Go(svc.worker.Run(ctx))
		g.Go(func() error { return svc.scheduler.Start(ctx) })
	}

	log.InfoContext(ctx, "service started",
		slog.String("env", c.app.Environment().String()),
		slog.Bool("worker", c.app.Worker),
		logger.Component("app"))
	return g.Wait()
}

// caches holds the stores shared by every instance of the service: the
// tenant cache and the sign-in rate limits.
type caches struct {
	tenants tenant.Cache
	limits  ratelimiter.Store
	close   func()
}

func newCaches(ctx context.Context, c configs, health *[]httpserver.Check) (*caches, error) {
	switch c.app.TenantCache {
	case "memory":
		limits := ratelimiter.NewMemoryStore()
		return &caches{
			tenants: tenant.NewMemoryCache(c.tenant.CacheTTL),
			limits:  limits,
			close:   limits.Close,
		}, nil
	case "redis", "":
		client, err := redis.Connect(ctx, c.redis)
		if err != nil {
			return nil, err
		}
		*health = append(*health, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
		return &caches{
			tenants: tenant.NewRedisCache(client, c.tenant.CacheTTL),
			limits:  ratelimiter.NewRedisStore(client, "billingkit:signin:"),
			close:   func() { _ = client.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", ErrConfig, c.app.TenantCache)
	}
}

type service struct {
	api       api.Deps
	worker    *queue.Worker
	scheduler *queue.Scheduler
}

// build wires the stores, document pipeline, queue and webhooks.
func build(ctx context.Context, c configs, pool *pgxpool.Pool, cache tenant.Cache, log *slog.Logger) (*service, func(), error) {
	db := store.New(pool)
	collector := telemetry.New(c.telemetry)
	ipResolver := clientip.New(c.app.TrustProxy)

	storage, err := file.NewStorage(ctx, c.storage)
	if err != nil {
		return nil, nil, err
	}

	mailer, err := email.NewSender(c.email)
	if err != nil {
		return nil, nil, err
	}

	chrome := document.NewChromeConverter(c.document)
	generator := document.NewGenerator(
		document.NewBreakerConverter(chrome, c.document, log),
		document.WithTelemetry(collector),
		document.WithLogger(log),
	)

	tasks := queue.NewPGStorage(pool)
	enqueuer, err := queue.NewEnqueuer(tasks)
	if err != nil {
		chrome.Close()
		return nil, nil, err
	}

	sessions := session.New(
		session.WithConfig(c.session),
		session.WithStore(db.Sessions),
		session.WithClientIP(ipResolver),
		session.WithLogger(log),
	)

	runner := jobs.New(jobs.Deps{
		Tenants:   db.Tenants,
		Cache:     cache,
		Sessions:  sessions,
		Exports:   db.Jobs,
		Lookup:    db.Jobs,
		Storage:   storage,
		Mailer:    mailer,
		Documents: generator,
		Queue:     enqueuer,
	}, c.jobs, jobs.WithLogger(log))

	worker, err := queue.NewWorker(tasks,
		queue.WithMaxConcurrentTasks(c.queue.MaxConcurrentTasks),
		queue.WithPullInterval(c.queue.PollInterval),
		queue.WithLockTimeout(c.queue.LockTimeout),
		queue.WithRetryPolicy(c.queue.RetryPolicy()),
		queue.WithWorkerTelemetry(collector),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		chrome.Close()
		return nil, nil, err
	}
	if err := worker.RegisterHandlers(runner.Handlers()...); err != nil {
		chrome.Close()
		return nil, nil, err
	}

	scheduler, err := queue.NewScheduler(tasks,
		queue.WithCheckInterval(c.queue.SchedulerInterval),
		queue.WithSchedulerLogger(log),
	)
	if err != nil {
		chrome.Close()
		return nil, nil, err
	}
	if err := jobs.Schedule(scheduler); err != nil {
		chrome.Close()
		return nil, nil, err
	}

	memberships := membership.NewService(db.Memberships,
		membership.WithLogger(log),
		membership.WithNotifier(membership.NotifierFunc(func(ctx context.Context, m membership.Membership) error {
			_, err := enqueuer.Enqueue(ctx, jobs.SendInvitation{MembershipID: m.ID}, queue.WithPriority(queue.PriorityMail))
			return err
		})),
	)

	deps := api.Deps{
		Sessions:    sessions,
		Users:       db.Users,
		Tenants:     db.Tenants,
		TenantCache: cache,
		TenantCfg:   c.tenant,
		Memberships: memberships,
		Invoices:    db.Invoices,
		Documents:   generator,
		Archiver:    document.NewArchiver(storage, log),
		Jobs:        enqueuer,
		Dashboard:   metrics.NewDashboard(db.Metrics, nil),
		Telemetry:   collector,
		ClientIP:    ipResolver,
	}

	reconciler := subscription.NewReconciler(db.Accounts, db.Plans, db.Invoices, subscription.WithLogger(log))
	if parser, err := subscription.NewStripeParser(c.stripe); err == nil {
		deps.Stripe = subscription.WebhookHandler(parser, reconciler, collector, log)
	} else {
		log.WarnContext(ctx, "stripe webhooks disabled", logger.Error(err), logger.Component("app"))
	}
	if parser, err := subscription.NewPaddleParser(c.paddle); err == nil {
		deps.Paddle = subscription.WebhookHandler(parser, reconciler, collector, log)
	} else {
		log.WarnContext(ctx, "paddle webhooks disabled", logger.Error(err), logger.Component("app"))
	}

	return &service{api: deps, worker: worker, scheduler: scheduler}, chrome.Close, nil
}
