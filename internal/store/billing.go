package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// AccountStore implements subscription.AccountStore.
type AccountStore struct {
	db DB
}

func (s *AccountStore) FindByCustomerID(ctx context.Context, customerID string) (*subscription.Account, error) {
	if customerID == "" {
		return nil, subscription.ErrAccountNotFound
	}
	var (
		a      subscription.Account
		planID *uuid.UUID
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, customer_id, plan_id, subscription_status, trial_ends_at
		FROM accounts WHERE customer_id = $1`, customerID).
		Scan(&a.ID, &a.CustomerID, &planID, &a.Status, &a.TrialEndsAt)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account by customer: %w", err)
	}
	if planID != nil {
		a.PlanID = *planID
	}
	return &a, nil
}

// UpdateSubscription stores the plan and status. A zero planID keeps the
// current plan. past_due_since and
// canceled_at keep the time the account first entered that status.
func (s *AccountStore) UpdateSubscription(ctx context.Context, accountID, planID uuid.UUID, status subscription.Status, trialEndsAt *time.Time) error {
	if accountID == uuid.Nil {
		return subscription.ErrAccountNotFound
	}
	var plan *uuid.UUID
	if planID != uuid.Nil {
		plan = &planID
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			plan_id = COALESCE($2, plan_id),
			subscription_status = $3,
			trial_ends_at = $4,
			past_due_since = CASE WHEN $3 = 'past_due' THEN COALESCE(past_due_since, now()) ELSE NULL END,
			canceled_at = CASE WHEN $3 = 'canceled' THEN COALESCE(canceled_at, now()) ELSE NULL END,
			updated_at = now()
		WHERE id = $1`,
		accountID, plan, string(status), trialEndsAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrAccountNotFound
	}
	return nil
}

// PlanStore implements subscription.PlanStore.
type PlanStore struct {
	db DB
}

const planColumns = `id, name, COALESCE(price_id, ''), price_cents, currency, interval, free`

func scanPlan(row pgx.Row) (*subscription.Plan, error) {
	var p subscription.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.PriceID, &p.PriceCents, &p.Currency, &p.Interval, &p.Free); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &p, nil
}

func (s *PlanStore) FindByPriceID(ctx context.Context, priceID string) (*subscription.Plan, error) {
	if priceID == "" {
		return nil, subscription.ErrPlanNotFound
	}
	return scanPlan(s.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE price_id = $1`, priceID))
}

func (s *PlanStore) FreePlan(ctx context.Context) (*subscription.Plan, error) {
	return scanPlan(s.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE free LIMIT 1`))
}

// List returns every plan ordered by price.
func (s *PlanStore) List(ctx context.Context) ([]subscription.Plan, error) {
	rows, err := s.db.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY price_cents, name`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []subscription.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
