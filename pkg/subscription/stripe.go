package subscription

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeConfig struct {
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// StripeParser verifies the Stripe-Signature header and decodes
// customer.subscription.*, checkout.session.completed and
// payment_intent.succeeded events.
type StripeParser struct {
	secret string
}

func NewStripeParser(cfg StripeConfig) (*StripeParser, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	return &StripeParser{secret: cfg.WebhookSecret}, nil
}

func (p *StripeParser) Provider() string { return "stripe" }

func (p *StripeParser) Parse(r *http.Request) (*Event, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}

	sev, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	ev := &Event{
		ID:       sev.ID,
		Provider: p.Provider(),
		RawType:  string(sev.Type),
		Type:     EventUnknown,
	}
	if sev.Data == nil {
		return ev, nil
	}

	switch sev.Type {
	case "customer.subscription.created", "customer.subscription.updated",
		"customer.subscription.deleted", "customer.subscription.trial_will_end":
		var sub stripe.Subscription
		if err := json.Unmarshal(sev.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		ev.Type = stripeSubscriptionType(string(sev.Type))
		ev.Status = string(sub.Status)
		ev.TrialEnd = unixTime(sub.TrialEnd)
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil {
			for _, item := range sub.Items.Data {
				if item != nil && item.Price != nil {
					ev.PriceID = item.Price.ID
					break
				}
			}
		}

	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(sev.Data.Raw, &cs); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		ev.Type = EventPaymentCompleted
		ev.InvoiceID = cs.Metadata[invoiceMetadataKey]
		ev.PaymentReference = cs.ID
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			ev.PaymentReference = cs.PaymentIntent.ID
		}
		if cs.Customer != nil {
			ev.CustomerID = cs.Customer.ID
		}
		ev.PaidAt = stripeEventTime(sev.Created)

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(sev.Data.Raw, &pi); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		ev.Type = EventPaymentCompleted
		ev.InvoiceID = pi.Metadata[invoiceMetadataKey]
		ev.PaymentReference = pi.ID
		if pi.Customer != nil {
			ev.CustomerID = pi.Customer.ID
		}
		ev.PaidAt = stripeEventTime(sev.Created)
	}

	return ev, nil
}

func stripeSubscriptionType(t string) EventType {
	switch t {
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	case "customer.subscription.trial_will_end":
		return EventSubscriptionTrialWillEnd
	}
	return EventUnknown
}

func stripeEventTime(sec int64) time.Time {
	if t := unixTime(sec); t != nil {
		return *t
	}
	return time.Now().UTC()
}

func readPayload(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	return body, nil
}
