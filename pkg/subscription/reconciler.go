package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// TrialEndingHook is called for subscription.trial_will_end events.
type TrialEndingHook func(ctx context.Context, account *Account, ev *Event) error

type ReconcilerOption func(*Reconciler)

func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithTrialEndingHook(h TrialEndingHook) ReconcilerOption {
	return func(r *Reconciler) {
		r.trialEnding = h
	}
}

// Reconciler applies events to local state.
type Reconciler struct {
	accounts    AccountStore
	plans       PlanStore
	invoices    InvoicePayer
	logger      *slog.Logger
	trialEnding TrialEndingHook
}

func NewReconciler(accounts AccountStore, plans PlanStore, invoices InvoicePayer, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		accounts: accounts,
		plans:    plans,
		invoices: invoices,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle applies ev. It returns nil for events that do not concern this
// service and an error wrapping ErrReconcile for internal faults.
func (r *Reconciler) Handle(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	log := r.logger.With(
		logger.EventID(ev.ID),
		logger.EventType(string(ev.Type)),
		slog.String("provider", ev.Provider),
		logger.Component("subscription"),
	)

	var err error
	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		err = r.applySubscription(ctx, log, ev)
	case EventSubscriptionDeleted:
		err = r.downgrade(ctx, log, ev)
	case EventSubscriptionTrialWillEnd:
		err = r.trialWillEnd(ctx, log, ev)
	case EventPaymentCompleted:
		err = r.markPaid(ctx, log, ev)
	default:
		log.DebugContext(ctx, "ignoring webhook event", slog.String("raw_type", ev.RawType))
		return nil
	}

	if err != nil {
		log.ErrorContext(ctx, "failed to reconcile webhook event", logger.Error(err))
		return errors.Join(ErrReconcile, err)
	}
	return nil
}

func (r *Reconciler) findAccount(ctx context.Context, log *slog.Logger, ev *Event) (*Account, error) {
	if ev.CustomerID == "" {
		log.WarnContext(ctx, "webhook event without customer reference")
		return nil, nil
	}
	acc, err := r.accounts.FindByCustomerID(ctx, ev.CustomerID)
	if errors.Is(err, ErrAccountNotFound) {
		log.WarnContext(ctx, "no account for customer", slog.String("customer_id", ev.CustomerID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by customer: %w", err)
	}
	return acc, nil
}

func (r *Reconciler) applySubscription(ctx context.Context, log *slog.Logger, ev *Event) error {
	acc, err := r.findAccount(ctx, log, ev)
	if err != nil || acc == nil {
		return err
	}

	if ev.PriceID == "" {
		log.WarnContext(ctx, "subscription event without price", logger.TenantID(acc.ID))
		return nil
	}
	plan, err := r.plans.FindByPriceID(ctx, ev.PriceID)
	if errors.Is(err, ErrPlanNotFound) {
		log.WarnContext(ctx, "no plan for price", slog.String("price_id", ev.PriceID), logger.TenantID(acc.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find plan by price: %w", err)
	}

	status, ok := MapStatus(ev.Status)
	if !ok {
		status = acc.Status
		log.WarnContext(ctx, "unrecognised subscription status, keeping current",
			slog.String("status", ev.Status),
			slog.String("current", string(acc.Status)),
			logger.TenantID(acc.ID))
	}

	if err := r.accounts.UpdateSubscription(ctx, acc.ID, plan.ID, status, ev.TrialEnd); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	log.InfoContext(ctx, "subscription updated",
		logger.TenantID(acc.ID),
		slog.String("plan", plan.Name),
		slog.String("status", string(status)))
	return nil
}

func (r *Reconciler) downgrade(ctx context.Context, log *slog.Logger, ev *Event) error {
	acc, err := r.findAccount(ctx, log, ev)
	if err != nil || acc == nil {
		return err
	}

	free, err := r.plans.FreePlan(ctx)
	if err != nil {
		return fmt.Errorf("load free plan: %w", err)
	}
	if err := r.accounts.UpdateSubscription(ctx, acc.ID, free.ID, StatusCanceled, nil); err != nil {
		return fmt.Errorf("downgrade account: %w", err)
	}
	log.InfoContext(ctx, "subscription canceled, account downgraded", logger.TenantID(acc.ID))
	return nil
}

func (r *Reconciler) trialWillEnd(ctx context.Context, log *slog.Logger, ev *Event) error {
	acc, err := r.findAccount(ctx, log, ev)
	if err != nil || acc == nil {
		return err
	}
	log.InfoContext(ctx, "trial ending soon", logger.TenantID(acc.ID))
	if r.trialEnding != nil {
		return r.trialEnding(ctx, acc, ev)
	}
	return nil
}

func (r *Reconciler) markPaid(ctx context.Context, log *slog.Logger, ev *Event) error {
	if ev.InvoiceID == "" {
		log.WarnContext(ctx, "payment event without invoice reference")
		return nil
	}
	invoiceID, err := uuid.Parse(ev.InvoiceID)
	if err != nil {
		log.WarnContext(ctx, "payment event with malformed invoice reference", slog.String("invoice_id", ev.InvoiceID))
		return nil
	}

	changed, err := r.invoices.MarkPaid(ctx, invoiceID, ev.PaymentReference, ev.PaidAt)
	if errors.Is(err, ErrInvoiceNotFound) {
		log.WarnContext(ctx, "payment for unknown invoice", slog.String("invoice_id", ev.InvoiceID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if !changed {
		log.DebugContext(ctx, "invoice already paid", slog.String("invoice_id", ev.InvoiceID))
		return nil
	}
	log.InfoContext(ctx, "invoice marked paid",
		slog.String("invoice_id", ev.InvoiceID),
		slog.String("reference", ev.PaymentReference))
	return nil
}
