package store

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/billingkit/pkg/metrics"
)

// MetricsSource implements metrics.Source. Accounts without a plan are
// reported with a zero price.
type MetricsSource struct {
	db DB
}

func (s *MetricsSource) Accounts(ctx context.Context) ([]metrics.AccountSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, COALESCE(p.name, ''), COALESCE(p.price_cents, 0), COALESCE(p.interval, 'month'),
			COALESCE(p.free, true), a.subscription_status, a.created_at, a.canceled_at, a.past_due_since
		FROM accounts a LEFT JOIN plans p ON p.id = a.plan_id
		ORDER BY a.created_at`)
	if err != nil {
		return nil, fmt.Errorf("load account snapshots: %w", err)
	}
	defer rows.Close()

	var out []metrics.AccountSnapshot
	for rows.Next() {
		var a metrics.AccountSnapshot
		if err := rows.Scan(&a.ID, &a.PlanName, &a.PriceCents, &a.Interval, &a.Free, &a.Status,
			&a.CreatedAt, &a.CanceledAt, &a.PastDueSince); err != nil {
			return nil, fmt.Errorf("scan account snapshot: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
