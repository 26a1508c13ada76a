package metrics

import (
	"context"
	"time"
)

type RevenueSummary struct {
	MRR           float64            `json:"mrr"`
	ARR           float64            `json:"arr"`
	MRRByPlan     map[string]float64 `json:"mrr_by_plan"`
	MRRGrowthRate float64            `json:"mrr_growth_rate"`
}

type Revenue struct {
	source Source
	now    func() time.Time
}

func NewRevenue(source Source, now func() time.Time) *Revenue {
	if now == nil {
		now = time.Now
	}
	return &Revenue{source: source, now: now}
}

// Summary computes MRR, ARR, MRR per plan and the growth rate against the
// MRR of growthDays ago.
func (s *Revenue) Summary(ctx context.Context, growthDays int) (RevenueSummary, error) {
	accounts, err := s.source.Accounts(ctx)
	if err != nil {
		return RevenueSummary{}, err
	}
	return revenueOf(accounts, s.now(), growthDays), nil
}

func revenueOf(accounts []AccountSnapshot, now time.Time, growthDays int) RevenueSummary {
	current := mrrCents(accounts, nil)

	cutoff := now.AddDate(0, 0, -growthDays)
	past := mrrCents(accounts, func(a AccountSnapshot) bool {
		return !a.CreatedAt.After(cutoff)
	})

	byPlan := make(map[string]float64)
	for _, a := range accounts {
		if a.Status.Paying() && a.paid() {
			byPlan[a.PlanName] += a.MonthlyCents()
		}
	}
	for name, cents := range byPlan {
		byPlan[name] = toMajor(cents)
	}

	return RevenueSummary{
		MRR:           toMajor(current),
		ARR:           toMajor(current * 12),
		MRRByPlan:     byPlan,
		MRRGrowthRate: round2(ratio(current-past, past) * 100),
	}
}
