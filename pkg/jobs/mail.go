package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/queue"
)

// SendInvitation emails a new member a link to their account.
type SendInvitation struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// SendInvitation is a logged no-op when the membership no longer exists.
func (r *Runner) SendInvitation(ctx context.Context, p SendInvitation) error {
	inv, err := r.Lookup.Invitation(ctx, p.MembershipID)
	if errors.Is(err, ErrRecordNotFound) {
		r.log.WarnContext(ctx, "invitation target not found", slog.String("membership_id", p.MembershipID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}
	if inv.Email == "" {
		r.log.WarnContext(ctx, "invitation target has no email", slog.String("membership_id", p.MembershipID.String()))
		return nil
	}

	html, err := email.Render(ctx, email.InvitationBody(inv.AccountName, string(inv.Role), r.tenantURL(inv.Subdomain, "/auth/sign-in")))
	if err != nil {
		return err
	}

	if err := r.Mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   inv.Email,
		Subject:  "You have been invited to " + inv.AccountName,
		BodyHTML: html,
		Tag:      "invitation",
	}); err != nil {
		return fmt.Errorf("send invitation: %w", err)
	}

	r.log.InfoContext(ctx, "invitation sent", slog.String("membership_id", p.MembershipID.String()))
	return nil
}

// SendInvoiceReminder emails the client of an invoice a payment reminder.
type SendInvoiceReminder struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// SendInvoiceReminder attaches the invoice PDF only when generation
// succeeded; a failed render still sends the reminder without it. Invoices
// that are no longer remindable (paid, canceled, still a draft) and
// estimates are a logged no-op.
func (r *Runner) SendInvoiceReminder(ctx context.Context, p SendInvoiceReminder) error {
	doc, err := r.Lookup.InvoiceDocument(ctx, p.InvoiceID)
	if errors.Is(err, ErrRecordNotFound) {
		r.log.WarnContext(ctx, "reminder target not found", slog.String("invoice_id", p.InvoiceID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	if !doc.Remindable() {
		r.log.InfoContext(ctx, "invoice not remindable, reminder skipped",
			logger.TenantID(doc.AccountID),
			slog.String("invoice_id", p.InvoiceID.String()),
			slog.String("kind", string(doc.Kind)),
			slog.String("status", string(doc.Status)))
		return nil
	}
	if doc.ClientEmail == "" {
		r.log.WarnContext(ctx, "invoice client has no email",
			logger.TenantID(doc.AccountID),
			slog.String("invoice_id", p.InvoiceID.String()))
		return nil
	}

	params := email.SendEmailParams{
		SendTo:  doc.ClientEmail,
		Subject: fmt.Sprintf("Reminder: invoice %s from %s", doc.Number, doc.AccountName),
		Tag:     "invoice-reminder",
	}

	if res := r.Documents.Generate(ctx, *doc); res.OK {
		params.Attachments = []email.Attachment{{Name: res.Filename, ContentType: "application/pdf", Data: res.Data}}
	} else {
		r.log.WarnContext(ctx, "sending reminder without pdf",
			logger.TenantID(doc.AccountID),
			slog.String("invoice_id", p.InvoiceID.String()),
			logger.Error(res.Err))
	}

	due := "receipt"
	if !doc.DueAt.IsZero() {
		due = doc.DueAt.Format("January 2, 2006")
	}
	params.BodyHTML, err = email.Render(ctx, email.InvoiceReminderBody(
		doc.ClientName, doc.Number, document.FormatAmount(doc.TotalCents(), doc.Currency), due,
	))
	if err != nil {
		return err
	}

	if err := r.Mailer.SendEmail(ctx, params); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	r.log.InfoContext(ctx, "invoice reminder sent",
		logger.TenantID(doc.AccountID),
		slog.String("invoice_id", p.InvoiceID.String()),
		slog.Int("attachments", len(params.Attachments)))
	return nil
}

// RemindOverdue is the payload of the daily overdue invoice scan.
type RemindOverdue struct{}

// RemindResult reports how many reminders were queued by a scan.
type RemindResult struct {
	Queued int
	Failed int
}

// RemindOverdue queues a SendInvoiceReminder for every sent, unpaid invoice
// past its due date. A reminder that cannot be queued is logged and
// skipped; only a failed lookup is returned.
func (r *Runner) RemindOverdue(ctx context.Context) (RemindResult, error) {
	var res RemindResult

	ids, err := r.Lookup.OverdueInvoices(ctx, r.now())
	if err != nil {
		return res, fmt.Errorf("list overdue invoices: %w", err)
	}

	for _, id := range ids {
		if _, err := r.Queue.Enqueue(ctx, SendInvoiceReminder{InvoiceID: id}, queue.WithPriority(queue.PriorityMail)); err != nil {
			res.Failed++
			r.log.WarnContext(ctx, "failed to queue invoice reminder",
				slog.String("invoice_id", id.String()),
				logger.Error(err))
			continue
		}
		res.Queued++
	}

	r.log.InfoContext(ctx, "overdue invoices scanned",
		logger.Count(int64(res.Queued)),
		slog.Int("failed", res.Failed))
	return res, nil
}
