package metrics

import (
	"context"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type CustomerSummary struct {
	TotalCustomers    int     `json:"total_customers"`
	ActiveCustomers   int     `json:"active_customers"`
	TrialingCustomers int     `json:"trialing_customers"`
	PastDueCustomers  int     `json:"past_due_customers"`
	CanceledCustomers int     `json:"canceled_customers"`
	PausedCustomers   int     `json:"paused_customers"`
	ChurnRate         float64 `json:"churn_rate"`
	ARPU              float64 `json:"arpu"`
	LTV               float64 `json:"ltv"`
}

type Customers struct {
	source Source
	now    func() time.Time
}

func NewCustomers(source Source, now func() time.Time) *Customers {
	if now == nil {
		now = time.Now
	}
	return &Customers{source: source, now: now}
}

// Summary counts accounts by status and derives churn over the last
// periodDays, ARPU and LTV.
func (s *Customers) Summary(ctx context.Context, periodDays int) (CustomerSummary, error) {
	accounts, err := s.source.Accounts(ctx)
	if err != nil {
		return CustomerSummary{}, err
	}
	return customersOf(accounts, s.now(), periodDays), nil
}

func customersOf(accounts []AccountSnapshot, now time.Time, periodDays int) CustomerSummary {
	out := CustomerSummary{TotalCustomers: len(accounts)}
	start := now.AddDate(0, 0, -periodDays)

	var atStart, churned, paying int
	for _, a := range accounts {
		switch a.Status {
		case subscription.StatusActive:
			out.ActiveCustomers++
		case subscription.StatusTrialing:
			out.TrialingCustomers++
		case subscription.StatusPastDue:
			out.PastDueCustomers++
		case subscription.StatusCanceled:
			out.CanceledCustomers++
		case subscription.StatusPaused:
			out.PausedCustomers++
		}

		if a.Status.Paying() && a.paid() {
			paying++
		}

		canceledBeforeStart := a.CanceledAt != nil && a.CanceledAt.Before(start)
		if a.CreatedAt.Before(start) && !canceledBeforeStart {
			atStart++
			if a.Status == subscription.StatusCanceled && a.CanceledAt != nil && !a.CanceledAt.After(now) {
				churned++
			}
		}
	}

	churn := ratio(float64(churned), float64(atStart)) * 100
	arpu := ratio(mrrCents(accounts, nil)/100, float64(paying))

	out.ChurnRate = round2(churn)
	out.ARPU = round2(arpu)
	out.LTV = round2(ratio(arpu, churn/100))
	return out
}
