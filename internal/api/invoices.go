package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/internal/store"
	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
	"github.com/dmitrymomot/billingkit/pkg/validator"
)

// Statuses an invoice can be moved to by hand. Paid is set by payments only.
var editableStatuses = []string{string(document.Draft), string(document.Sent), string(document.Canceled)}

const maxNotesLength = 5000

func (a *API) showInvoice(ctx handler.Context, req IDRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	inv, err := a.Invoices.Get(ctx, accountID, req.ID)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := policy.Authorize(policy.Invoices, actor, policy.Show, inv.Record()); err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(inv)
}

type UpdateInvoiceRequest struct {
	ID     uuid.UUID  `path:"id" json:"-"`
	Notes  *string    `json:"notes"`
	DueAt  *time.Time `json:"due_at"`
	Status *string    `json:"status"`
}

// validate checks the fields against the invoice's current status. Status
// only moves forward: draft to sent, draft or sent to canceled.
func (req UpdateInvoiceRequest) validate(current document.Status) error {
	next := document.Status(deref(req.Status))
	return validator.Apply(
		validator.When(req.Notes != nil, validator.MaxLen("notes", deref(req.Notes), maxNotesLength)),
		validator.When(req.Status != nil, validator.OneOf("status", string(next), editableStatuses)),
		validator.When(req.Status != nil, validator.Rule{
			Check: func() bool { return current.CanMoveTo(next) },
			Error: validator.ValidationError{Field: "status", Message: "cannot change from " + string(current)},
		}),
	)
}

func (req UpdateInvoiceRequest) update() store.InvoiceUpdate {
	upd := store.InvoiceUpdate{Notes: req.Notes, DueAt: req.DueAt}
	if req.Status != nil {
		next := document.Status(*req.Status)
		upd.Status = &next
	}
	return upd
}

// updateInvoice edits an unpaid invoice. Paid invoices are forbidden by
// policy and, for a concurrent payment, by the store.
func (a *API) updateInvoice(ctx handler.Context, req UpdateInvoiceRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	inv, err := a.Invoices.Get(ctx, accountID, req.ID)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := policy.Authorize(policy.Invoices, actor, policy.Update, inv.Record()); err != nil {
		return a.fail(ctx, err)
	}
	if err := req.validate(inv.Status); err != nil {
		return a.fail(ctx, err)
	}

	updated, err := a.Invoices.Update(ctx, accountID, req.ID, req.update())
	if err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(updated)
}

type ReminderResponse struct {
	TaskID string `json:"task_id"`
}

// remindInvoice queues a payment reminder to the client of a sent, unpaid
// invoice.
func (a *API) remindInvoice(ctx handler.Context, req IDRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	inv, err := a.Invoices.Get(ctx, accountID, req.ID)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := policy.Authorize(policy.Invoices, actor, policy.Send, inv.Record()); err != nil {
		return a.fail(ctx, err)
	}
	if !inv.Remindable() {
		return a.fail(ctx, errNotRemindable)
	}

	taskID, err := a.Jobs.Enqueue(ctx, jobs.SendInvoiceReminder{InvoiceID: inv.ID}, queue.WithPriority(queue.PriorityMail))
	if err != nil {
		return a.fail(ctx, err)
	}

	a.log.InfoContext(ctx, "invoice reminder queued",
		logger.TenantID(accountID), logger.UserID(actor.UserID), logger.TaskID(taskID), logger.Component("api"))
	return handler.JSON(ReminderResponse{TaskID: taskID.String()}, handler.WithJSONStatus(http.StatusAccepted))
}

func (a *API) invoicePDF(ctx handler.Context, req IDRequest) handler.Response {
	return a.renderPDF(ctx, req, document.Invoice)
}

func (a *API) estimatePDF(ctx handler.Context, req IDRequest) handler.Response {
	return a.renderPDF(ctx, req, document.Estimate)
}

func (a *API) renderPDF(ctx handler.Context, req IDRequest, kind document.Kind) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := policy.Authorize(policy.Invoices, actor, policy.Download, policy.InvoiceRecord{}); err != nil {
		return a.fail(ctx, err)
	}

	doc, err := a.Invoices.Document(ctx, accountID, req.ID, kind)
	if err != nil {
		return a.fail(ctx, err)
	}

	res := a.Documents.Generate(ctx, *doc)
	if !res.OK {
		return a.fail(ctx, res.Err)
	}

	if a.Archiver != nil && a.cfg.ArchiveDocuments {
		if _, err := a.Archiver.Archive(ctx, *doc, res); err != nil {
			a.log.WarnContext(ctx, "failed to archive document",
				logger.TenantID(accountID), logger.Error(err), logger.Component("api"))
		}
	}
	return handler.Attachment(res.Filename, "application/pdf", res.Data)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
