package subscription

import (
	"net/http"
	"time"
)

// EventType is the provider-neutral event kind.
type EventType string

const (
	EventSubscriptionCreated      EventType = "subscription.created"
	EventSubscriptionUpdated      EventType = "subscription.updated"
	EventSubscriptionDeleted      EventType = "subscription.deleted"
	EventSubscriptionTrialWillEnd EventType = "subscription.trial_will_end"
	EventPaymentCompleted         EventType = "payment.completed"
	EventUnknown                  EventType = "unknown"
)

// Event is a verified webhook delivery. RawType keeps the provider's own type.
type Event struct {
	ID         string
	Provider   string
	Type       EventType
	RawType    string
	CustomerID string
	PriceID    string
	Status     string
	TrialEnd   *time.Time

	// Payment events.
	InvoiceID        string
	PaymentReference string
	PaidAt           time.Time
}

// Parser verifies and decodes a provider webhook request.
type Parser interface {
	Provider() string
	Parse(r *http.Request) (*Event, error)
}

// invoiceMetadataKey is the metadata field carrying the local invoice id.
const invoiceMetadataKey = "invoice_id"

const maxPayloadBytes = 1 << 20

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
