package metrics

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// AccountSnapshot is an account joined with its plan.
type AccountSnapshot struct {
	ID           uuid.UUID
	PlanName     string
	PriceCents   int64
	Interval     subscription.Interval
	Free         bool
	Status       subscription.Status
	CreatedAt    time.Time
	CanceledAt   *time.Time
	PastDueSince *time.Time
}

// MonthlyCents is the account's plan price normalised to one month.
func (a AccountSnapshot) MonthlyCents() float64 {
	return subscription.Plan{PriceCents: a.PriceCents, Interval: a.Interval, Free: a.Free}.MonthlyCents()
}

func (a AccountSnapshot) paid() bool {
	return !a.Free && a.PriceCents > 0
}

// Source lists every account with its current plan.
type Source interface {
	Accounts(ctx context.Context) ([]AccountSnapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]AccountSnapshot, error)

func (f SourceFunc) Accounts(ctx context.Context) ([]AccountSnapshot, error) {
	return f(ctx)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func toMajor(cents float64) float64 {
	return round2(cents / 100)
}

// mrrCents sums monthly-normalised prices of paying accounts on paid plans.
func mrrCents(accounts []AccountSnapshot, include func(AccountSnapshot) bool) float64 {
	var sum float64
	for _, a := range accounts {
		if a.Status.Paying() && a.paid() && (include == nil || include(a)) {
			sum += a.MonthlyCents()
		}
	}
	return sum
}
