package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// JobStore implements jobs.Lookup and jobs.ExportSource.
type JobStore struct {
	db DB
}

func (s *JobStore) Invitation(ctx context.Context, membershipID uuid.UUID) (*jobs.Invitation, error) {
	if membershipID == uuid.Nil {
		return nil, jobs.ErrRecordNotFound
	}
	inv := jobs.Invitation{MembershipID: membershipID}
	err := s.db.QueryRow(ctx, `
		SELECT u.email, m.role, a.name, a.subdomain
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		JOIN accounts a ON a.id = m.account_id
		WHERE m.id = $1`, membershipID).Scan(&inv.Email, &inv.Role, &inv.AccountName, &inv.Subdomain)
	if pg.IsNotFoundError(err) {
		return nil, jobs.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}
	return &inv, nil
}

func (s *JobStore) InvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*document.Document, error) {
	if invoiceID == uuid.Nil {
		return nil, jobs.ErrRecordNotFound
	}
	var accountID uuid.UUID
	var kind document.Kind
	err := s.db.QueryRow(ctx, `SELECT account_id, kind FROM invoices WHERE id = $1`, invoiceID).Scan(&accountID, &kind)
	if pg.IsNotFoundError(err) {
		return nil, jobs.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	doc, err := (&InvoiceStore{db: s.db}).Document(ctx, accountID, invoiceID, kind)
	if errors.Is(err, ErrNotFound) {
		return nil, jobs.ErrRecordNotFound
	}
	return doc, err
}

// OverdueInvoices lists sent, unpaid invoices whose due date is before asOf,
// oldest due first.
func (s *JobStore) OverdueInvoices(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM invoices
		WHERE kind = 'invoice' AND status = 'sent' AND NOT paid AND due_at < $1
		ORDER BY due_at`, asOf)
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan overdue invoice: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *JobStore) UserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", jobs.ErrRecordNotFound
	}
	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if pg.IsNotFoundError(err) {
		return "", jobs.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load user email: %w", err)
	}
	return email, nil
}

// exportQueries maps each allowed kind to a fixed query. The kind never becomes SQL text.
var exportQueries = map[jobs.ExportKind]struct {
	columns []string
	sql     string
}{
	jobs.ExportClients: {
		columns: []string{"id", "name", "email", "created_at"},
		sql: `SELECT id::text, name, email, created_at FROM clients
			WHERE account_id = $1 ORDER BY created_at`,
	},
	jobs.ExportInvoices: {
		columns: []string{"id", "kind", "number", "client_name", "status", "currency", "total_cents", "paid", "issued_at", "due_at"},
		sql: `SELECT i.id::text, i.kind, i.number, c.name, i.status, i.currency,
				COALESCE((SELECT SUM(ROUND(l.quantity * l.unit_cents)) FROM invoice_lines l WHERE l.invoice_id = i.id), 0)::bigint::text,
				i.paid::text, i.issued_at, i.due_at
			FROM invoices i JOIN clients c ON c.id = i.client_id
			WHERE i.account_id = $1 ORDER BY i.issued_at`,
	},
	jobs.ExportMemberships: {
		columns: []string{"id", "email", "role", "created_at"},
		sql: `SELECT m.id::text, u.email, m.role, m.created_at
			FROM memberships m JOIN users u ON u.id = m.user_id
			WHERE m.account_id = $1 ORDER BY m.created_at`,
	},
}

// ExportRows renders every value as text; timestamps use RFC 3339.
func (s *JobStore) ExportRows(ctx context.Context, accountID uuid.UUID, kind jobs.ExportKind) ([]string, [][]string, error) {
	q, ok := exportQueries[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", jobs.ErrUnknownExport, kind)
	}
	if accountID == uuid.Nil {
		return q.columns, [][]string{}, nil
	}

	rows, err := s.db.Query(ctx, q.sql, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("export %s: %w", kind, err)
	}
	defer rows.Close()

	out := [][]string{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("export %s: %w", kind, err)
		}
		out = append(out, formatRow(values))
	}
	return q.columns, out, rows.Err()
}

func formatRow(values []any) []string {
	row := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			row[i] = ""
		case string:
			row[i] = v
		case time.Time:
			row[i] = v.UTC().Format(time.RFC3339)
		case int64:
			row[i] = strconv.FormatInt(v, 10)
		case bool:
			row[i] = strconv.FormatBool(v)
		default:
			row[i] = fmt.Sprint(v)
		}
	}
	return row
}
