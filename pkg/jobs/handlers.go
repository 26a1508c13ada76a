package jobs

import (
	"context"
	"errors"

	"github.com/dmitrymomot/billingkit/pkg/queue"
)

// Handlers adapts the runner to queue handlers. Scheduled and on-demand runs
// of the same payload share a handler.
func (r *Runner) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(func(ctx context.Context, _ WarmCache) error {
			_, err := r.WarmCache(ctx)
			return err
		}),
		queue.NewTaskHandler(func(ctx context.Context, p SweepSessions) error {
			_, err := r.SweepSessions(ctx, p)
			return err
		}),
		queue.NewTaskHandler(func(ctx context.Context, _ RemindOverdue) error {
			_, err := r.RemindOverdue(ctx)
			return err
		}),
		queue.NewTaskHandler(func(ctx context.Context, p ExportData) error {
			if res := r.ExportData(ctx, p); res.Retryable() {
				return res.Err
			}
			return nil
		}),
		queue.NewTaskHandler(func(ctx context.Context, p SendInvitation) error {
			return classify(r.SendInvitation(ctx, p))
		}),
		queue.NewTaskHandler(func(ctx context.Context, p SendInvoiceReminder) error {
			return classify(r.SendInvoiceReminder(ctx, p))
		}),
	}
}

// Schedule registers the periodic jobs: cache warmup hourly, the session
// sweep daily at 03:00 and the overdue invoice scan daily at 09:00.
func Schedule(s *queue.Scheduler) error {
	return errors.Join(
		s.Add(WarmCache{}, queue.Hourly(), queue.PriorityMaintenance),
		s.Add(SweepSessions{}, queue.DailyAt(3, 0), queue.PriorityMaintenance),
		s.Add(RemindOverdue{}, queue.DailyAt(9, 0), queue.PriorityMail),
	)
}

func classify(err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return queue.Permanent(err)
	}
	return err
}
