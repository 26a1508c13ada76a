package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/tenant"
)

// WarmCache is the payload of an on-demand cache warmup.
type WarmCache struct{}

// WarmCacheResult reports how many tenants were cached.
type WarmCacheResult struct {
	Warmed  int
	Skipped int
}

// WarmCache loads every active tenant into the resolver cache under both
// its subdomain and id keys. A failing record is logged and skipped; only a
// failure to list tenants is returned.
func (r *Runner) WarmCache(ctx context.Context) (WarmCacheResult, error) {
	var res WarmCacheResult

	tenants, err := r.Tenants.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list active tenants: %w", err)
	}

	for i := range tenants {
		if err := r.warmOne(ctx, &tenants[i]); err != nil {
			res.Skipped++
			r.log.WarnContext(ctx, "skipped tenant during cache warmup",
				logger.TenantID(tenants[i].ID),
				logger.Error(err))
			continue
		}
		res.Warmed++
	}

	r.log.InfoContext(ctx, "tenant cache warmed",
		logger.Count(int64(res.Warmed)),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func (r *Runner) warmOne(ctx context.Context, t *tenant.Tenant) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cache panic: %v", p)
		}
	}()

	if t.Subdomain == "" {
		return fmt.Errorf("%w: tenant has no subdomain", tenant.ErrInvalidIdentifier)
	}
	r.Cache.Set(ctx, tenant.CacheKey(tenant.Identifier{Source: tenant.SourceSubdomain, Value: t.Subdomain}), t)
	r.Cache.Set(ctx, tenant.CacheKey(tenant.Identifier{Source: tenant.SourceSession, Value: t.ID.String()}), t)
	return nil
}

// SweepSessions is the payload of an on-demand session sweep.
// A zero MaxAge uses the configured session lifetime.
type SweepSessions struct {
	MaxAge time.Duration `json:"max_age"`
}

type SweepResult struct {
	Deleted int64
}

// SweepSessions bulk-deletes expired sessions.
func (r *Runner) SweepSessions(ctx context.Context, p SweepSessions) (SweepResult, error) {
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = r.cfg.SessionMaxAge
	}

	n, err := r.Sessions.SweepExpired(ctx, maxAge)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep sessions: %w", err)
	}

	r.log.InfoContext(ctx, "expired sessions swept",
		logger.Count(n),
		logger.Duration(maxAge))
	return SweepResult{Deleted: n}, nil
}
