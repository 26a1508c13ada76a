package api

import (
	"net/http"

	"github.com/dmitrymomot/billingkit/handler"
	"github.com/dmitrymomot/billingkit/pkg/jobs"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/policy"
	"github.com/dmitrymomot/billingkit/pkg/queue"
)

type ExportRequest struct {
	Kind string `json:"kind"`
}

type ExportResponse struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
}

// createExport queues a CSV export. The file link is emailed to the caller.
func (a *API) createExport(ctx handler.Context, req ExportRequest) handler.Response {
	actor, accountID, err := scope(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := policy.Authorize(policy.Exports, actor, policy.Export, policy.Headless{}); err != nil {
		return a.fail(ctx, err)
	}
	kind, err := jobs.ParseExportKind(req.Kind)
	if err != nil {
		return a.fail(ctx, err)
	}

	taskID, err := a.Jobs.Enqueue(ctx, jobs.ExportData{
		AccountID:   accountID,
		Kind:        string(kind),
		RequestedBy: actor.UserID,
	}, queue.WithPriority(queue.PriorityExport))
	if err != nil {
		return a.fail(ctx, err)
	}

	a.log.InfoContext(ctx, "export queued",
		logger.TenantID(accountID), logger.UserID(actor.UserID), logger.TaskID(taskID), logger.Component("api"))
	return handler.JSON(ExportResponse{TaskID: taskID.String(), Kind: string(kind)},
		handler.WithJSONStatus(http.StatusAccepted))
}

func (a *API) adminMetrics(ctx handler.Context, _ struct{}) handler.Response {
	summary, err := a.Dashboard.All(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	return handler.JSON(summary)
}
