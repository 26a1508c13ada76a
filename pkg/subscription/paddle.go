package subscription

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
}

// PaddleParser verifies the Paddle-Signature header and decodes
// subscription.* and transaction.completed notifications.
type PaddleParser struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleParser(cfg PaddleConfig) (*PaddleParser, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	return &PaddleParser{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

func (p *PaddleParser) Provider() string { return "paddle" }

type paddleNotification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleCustomData struct {
	CustomerID string `json:"customer_id"`
	InvoiceID  string `json:"invoice_id"`
}

type paddleSubscription struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	CustomerID string            `json:"customer_id"`
	CustomData *paddleCustomData `json:"custom_data"`
	Items      []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
		TrialDates *struct {
			EndsAt time.Time `json:"ends_at"`
		} `json:"trial_dates"`
	} `json:"items"`
}

type paddleTransaction struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	BilledAt   *time.Time        `json:"billed_at"`
	CustomData *paddleCustomData `json:"custom_data"`
}

func (p *PaddleParser) Parse(r *http.Request) (*Event, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}

	// The verifier consumes the body, so it gets its own copy.
	vreq, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	vreq.Header = r.Header.Clone()

	ok, err := p.verifier.Verify(vreq)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	ev := &Event{
		ID:       n.EventID,
		Provider: p.Provider(),
		RawType:  n.EventType,
		Type:     EventUnknown,
	}

	switch n.EventType {
	case "subscription.created", "subscription.updated", "subscription.canceled":
		var sub paddleSubscription
		if err := json.Unmarshal(n.Data, &sub); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		switch n.EventType {
		case "subscription.created":
			ev.Type = EventSubscriptionCreated
		case "subscription.updated":
			ev.Type = EventSubscriptionUpdated
		default:
			ev.Type = EventSubscriptionDeleted
		}
		ev.Status = sub.Status
		ev.CustomerID = sub.CustomerID
		if ev.CustomerID == "" && sub.CustomData != nil {
			ev.CustomerID = sub.CustomData.CustomerID
		}
		if len(sub.Items) > 0 {
			ev.PriceID = sub.Items[0].Price.ID
			if td := sub.Items[0].TrialDates; td != nil && !td.EndsAt.IsZero() {
				end := td.EndsAt.UTC()
				ev.TrialEnd = &end
			}
		}

	case "transaction.completed":
		var txn paddleTransaction
		if err := json.Unmarshal(n.Data, &txn); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		ev.Type = EventPaymentCompleted
		ev.PaymentReference = txn.ID
		ev.CustomerID = txn.CustomerID
		if txn.CustomData != nil {
			ev.InvoiceID = txn.CustomData.InvoiceID
		}
		ev.PaidAt = n.OccurredAt.UTC()
		if txn.BilledAt != nil {
			ev.PaidAt = txn.BilledAt.UTC()
		}
		if ev.PaidAt.IsZero() {
			ev.PaidAt = time.Now().UTC()
		}
	}

	return ev, nil
}
