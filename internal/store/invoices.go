package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Invoice is an invoice or an estimate of an account.
type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"account_id"`
	ClientID         uuid.UUID       `json:"client_id"`
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email"`
	Kind             document.Kind   `json:"kind"`
	Number           string          `json:"number"`
	Status           document.Status `json:"status"`
	Currency         string          `json:"currency"`
	Notes            string          `json:"notes"`
	IssuedAt         time.Time       `json:"issued_at"`
	DueAt            *time.Time      `json:"due_at,omitempty"`
	Paid             bool            `json:"paid"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	Lines            []document.Line `json:"lines"`
}

// Record is the state the invoice policy decides on.
func (i *Invoice) Record() policy.InvoiceRecord {
	return policy.InvoiceRecord{Paid: i.Paid, Status: string(i.Status)}
}

// Remindable reports whether the client can be sent a payment reminder.
func (i *Invoice) Remindable() bool {
	return !i.Paid && i.Kind == document.Invoice && i.Status == document.Sent
}

// Document converts the invoice into a printable document.
func (i *Invoice) Document(accountName string) document.Document {
	d := document.Document{
		ID:          i.ID,
		AccountID:   i.AccountID,
		Kind:        i.Kind,
		Status:      i.Status,
		Number:      i.Number,
		AccountName: accountName,
		ClientName:  i.ClientName,
		ClientEmail: i.ClientEmail,
		IssuedAt:    i.IssuedAt,
		Currency:    i.Currency,
		Lines:       i.Lines,
		Notes:       i.Notes,
	}
	if i.DueAt != nil {
		d.DueAt = *i.DueAt
	}
	return d
}

// InvoiceUpdate holds the editable fields. Nil fields are left unchanged.
type InvoiceUpdate struct {
	Notes  *string          `json:"notes"`
	DueAt  *time.Time       `json:"due_at"`
	Status *document.Status `json:"status"`
}

// InvoiceStore reads and edits invoices and implements subscription.InvoicePayer.
type InvoiceStore struct {
	db DB
}

const invoiceSelect = `
	SELECT i.id, i.account_id, i.client_id, c.name, c.email, i.kind, i.number, i.status, i.currency,
		i.notes, i.issued_at, i.due_at, i.paid, i.paid_at, i.payment_reference
	FROM invoices i JOIN clients c ON c.id = i.client_id`

func (s *InvoiceStore) load(ctx context.Context, where string, args ...any) (*Invoice, error) {
	var inv Invoice
	err := s.db.QueryRow(ctx, invoiceSelect+" "+where, args...).Scan(
		&inv.ID, &inv.AccountID, &inv.ClientID, &inv.ClientName, &inv.ClientEmail, &inv.Kind, &inv.Number,
		&inv.Status, &inv.Currency, &inv.Notes, &inv.IssuedAt, &inv.DueAt, &inv.Paid, &inv.PaidAt,
		&inv.PaymentReference)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT description, quantity, unit_cents FROM invoice_lines
		WHERE invoice_id = $1 ORDER BY position`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()

	inv.Lines = []document.Line{}
	for rows.Next() {
		var l document.Line
		if err := rows.Scan(&l.Description, &l.Quantity, &l.UnitCents); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	return &inv, rows.Err()
}

// Get returns an invoice or estimate of the account.
func (s *InvoiceStore) Get(ctx context.Context, accountID, id uuid.UUID) (*Invoice, error) {
	if accountID == uuid.Nil || id == uuid.Nil {
		return nil, ErrNotFound
	}
	return s.load(ctx, `WHERE i.account_id = $1 AND i.id = $2`, accountID, id)
}

// GetKind is Get restricted to one document kind.
func (s *InvoiceStore) GetKind(ctx context.Context, accountID, id uuid.UUID, kind document.Kind) (*Invoice, error) {
	if accountID == uuid.Nil || id == uuid.Nil {
		return nil, ErrNotFound
	}
	return s.load(ctx, `WHERE i.account_id = $1 AND i.id = $2 AND i.kind = $3`, accountID, id, string(kind))
}

// Update edits an unpaid invoice. Paid invoices return ErrInvoicePaid and a
// status change that document.Status.CanMoveTo rejects returns
// ErrInvalidTransition. The transition is checked inside the UPDATE.
func (s *InvoiceStore) Update(ctx context.Context, accountID, id uuid.UUID, upd InvoiceUpdate) (*Invoice, error) {
	if accountID == uuid.Nil || id == uuid.Nil {
		return nil, ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET
			notes = COALESCE($3, notes),
			due_at = COALESCE($4, due_at),
			status = COALESCE($5, status),
			updated_at = now()
		WHERE account_id = $1 AND id = $2 AND NOT paid
			AND ($5::varchar IS NULL OR status = $5
				OR (status = 'draft' AND $5 IN ('sent', 'canceled'))
				OR (status = 'sent' AND $5 = 'canceled'))`,
		accountID, id, upd.Notes, upd.DueAt, upd.Status)
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		inv, err := s.Get(ctx, accountID, id)
		if err != nil {
			return nil, err
		}
		if inv.Paid {
			return nil, ErrInvoicePaid
		}
		if upd.Status != nil && !inv.Status.CanMoveTo(*upd.Status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inv.Status, *upd.Status)
		}
		return nil, ErrNotFound
	}
	return s.Get(ctx, accountID, id)
}

// MarkPaid sets the invoice paid once. Repeated calls report false and leave
// the first payment reference in place. Estimates are never paid and are
// reported as subscription.ErrInvoiceNotFound.
func (s *InvoiceStore) MarkPaid(ctx context.Context, invoiceID uuid.UUID, reference string, paidAt time.Time) (bool, error) {
	if invoiceID == uuid.Nil {
		return false, subscription.ErrInvoiceNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET paid = true, status = 'paid', paid_at = $2, payment_reference = $3, updated_at = now()
		WHERE id = $1 AND kind = 'invoice' AND NOT paid`, invoiceID, paidAt, reference)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1 AND kind = 'invoice')`, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invoice: %w", err)
	}
	if !exists {
		return false, subscription.ErrInvoiceNotFound
	}
	return false, nil
}

// Document loads the invoice of the account as a printable document.
func (s *InvoiceStore) Document(ctx context.Context, accountID, id uuid.UUID, kind document.Kind) (*document.Document, error) {
	inv, err := s.GetKind(ctx, accountID, id, kind)
	if err != nil {
		return nil, err
	}
	var accountName string
	if err := s.db.QueryRow(ctx, `SELECT name FROM accounts WHERE id = $1`, accountID).Scan(&accountName); err != nil {
		return nil, fmt.Errorf("load account name: %w", err)
	}
	d := inv.Document(accountName)
	return &d, nil
}
