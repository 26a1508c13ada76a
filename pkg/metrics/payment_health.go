package metrics

import (
	"context"
	"math"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Aging buckets past-due accounts by days overdue.
type Aging struct {
	Days1To7   int `json:"1-7"`
	Days8To14  int `json:"8-14"`
	Days15To30 int `json:"15-30"`
	Over30     int `json:"30+"`
}

type PaymentHealthSummary struct {
	PastDueAccountsCount int     `json:"past_due_accounts_count"`
	PastDuePercentage    float64 `json:"past_due_percentage"`
	AtRiskRevenue        float64 `json:"at_risk_revenue"`
	FailedPaymentRate    float64 `json:"failed_payment_rate"`
	Aging                Aging   `json:"aging"`
	HealthScore          float64 `json:"health_score"`
}

type PaymentHealth struct {
	source Source
	now    func() time.Time
}

func NewPaymentHealth(source Source, now func() time.Time) *PaymentHealth {
	if now == nil {
		now = time.Now
	}
	return &PaymentHealth{source: source, now: now}
}

func (s *PaymentHealth) Summary(ctx context.Context) (PaymentHealthSummary, error) {
	accounts, err := s.source.Accounts(ctx)
	if err != nil {
		return PaymentHealthSummary{}, err
	}
	return paymentHealthOf(accounts, s.now()), nil
}

func paymentHealthOf(accounts []AccountSnapshot, now time.Time) PaymentHealthSummary {
	var out PaymentHealthSummary
	var billable int
	var atRisk float64

	for _, a := range accounts {
		switch a.Status {
		case subscription.StatusActive, subscription.StatusTrialing:
			billable++
		case subscription.StatusPastDue:
			billable++
			out.PastDueAccountsCount++
			if a.paid() {
				atRisk += a.MonthlyCents()
			}
			out.Aging.add(daysOverdue(a, now))
		}
	}

	healthy := mrrCents(accounts, nil)
	total := healthy + atRisk

	out.PastDuePercentage = round2(ratio(float64(out.PastDueAccountsCount), float64(len(accounts))) * 100)
	out.AtRiskRevenue = toMajor(atRisk)
	out.FailedPaymentRate = round2(ratio(float64(out.PastDueAccountsCount), float64(billable)) * 100)
	out.HealthScore = round2(math.Min(100, ratio(healthy, total)*100))
	return out
}

func daysOverdue(a AccountSnapshot, now time.Time) int {
	if a.PastDueSince == nil {
		return 0
	}
	return int(now.Sub(*a.PastDueSince).Hours() / 24)
}

func (g *Aging) add(days int) {
	switch {
	case days <= 7:
		g.Days1To7++
	case days <= 14:
		g.Days8To14++
	case days <= 30:
		g.Days15To30++
	default:
		g.Over30++
	}
}
