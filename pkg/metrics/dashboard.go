package metrics

import (
	"context"
	"time"
)

// Periods used by the dashboard.
const (
	DefaultGrowthDays = 30
	DefaultChurnDays  = 30
)

type DashboardSummary struct {
	Revenue       RevenueSummary       `json:"revenue"`
	Customers     CustomerSummary      `json:"customers"`
	PaymentHealth PaymentHealthSummary `json:"payment_health"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// Dashboard combines the three services over a single read of the source.
type Dashboard struct {
	source Source
	now    func() time.Time
}

func NewDashboard(source Source, now func() time.Time) *Dashboard {
	if now == nil {
		now = time.Now
	}
	return &Dashboard{source: source, now: now}
}

func (d *Dashboard) All(ctx context.Context) (DashboardSummary, error) {
	accounts, err := d.source.Accounts(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	now := d.now()
	return DashboardSummary{
		Revenue:       revenueOf(accounts, now, DefaultGrowthDays),
		Customers:     customersOf(accounts, now, DefaultChurnDays),
		PaymentHealth: paymentHealthOf(accounts, now),
		GeneratedAt:   now.UTC(),
	}, nil
}
