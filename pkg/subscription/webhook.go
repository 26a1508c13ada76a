package subscription

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
)

// WebhookHandler verifies, parses and reconciles provider deliveries.
// Bad signatures and malformed payloads get 400, reconcile faults 500 so the
// provider retries, everything else 200.
func WebhookHandler(parser Parser, rec *Reconciler, metrics *telemetry.Collector, log *slog.Logger) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	provider := parser.Provider()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ev, err := parser.Parse(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrPayloadTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			log.WarnContext(ctx, "rejected webhook delivery",
				slog.String("provider", provider), logger.Error(err), logger.Component("subscription"))
			metrics.WebhookEvent(provider, "unparsed", telemetry.OutcomeRejected)
			http.Error(w, http.StatusText(status), status)
			return
		}

		if err := rec.Handle(ctx, ev); err != nil {
			metrics.WebhookEvent(provider, string(ev.Type), telemetry.OutcomeFailed)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		outcome := telemetry.OutcomeOK
		if ev.Type == EventUnknown {
			outcome = telemetry.OutcomeIgnored
		}
		metrics.WebhookEvent(provider, string(ev.Type), outcome)
		w.WriteHeader(http.StatusOK)
	})
}
