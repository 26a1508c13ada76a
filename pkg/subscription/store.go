package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountStore reads and writes the billing side of accounts.
type AccountStore interface {
	// FindByCustomerID returns ErrAccountNotFound for unknown customers.
	FindByCustomerID(ctx context.Context, customerID string) (*Account, error)
	UpdateSubscription(ctx context.Context, accountID, planID uuid.UUID, status Status, trialEndsAt *time.Time) error
}

type PlanStore interface {
	// FindByPriceID returns ErrPlanNotFound for unknown prices.
	FindByPriceID(ctx context.Context, priceID string) (*Plan, error)
	FreePlan(ctx context.Context) (*Plan, error)
}

// InvoicePayer marks invoices paid.
type InvoicePayer interface {
	// MarkPaid sets the invoice paid only if it is not paid yet and reports
	// whether a row changed. Unknown invoices return ErrInvoiceNotFound.
	MarkPaid(ctx context.Context, invoiceID uuid.UUID, reference string, paidAt time.Time) (bool, error)
}
