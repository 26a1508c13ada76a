package subscription_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
)

const stripeSecret = "whsec_test_secret"

func stripeRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
	})
	r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	r.Header.Set("Stripe-Signature", signed.Header)
	return r
}

func newStripeParser(t *testing.T) *subscription.StripeParser {
	t.Helper()
	p, err := subscription.NewStripeParser(subscription.StripeConfig{WebhookSecret: stripeSecret})
	require.NoError(t, err)
	return p
}

func TestStripeParser(t *testing.T) {
	t.Parallel()

	t.Run("subscription updated", func(t *testing.T) {
		t.Parallel()
		payload := `{"id":"evt_1","object":"event","type":"customer.subscription.updated","created":1767225600,
			"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_1","status":"trialing","trial_end":1769904000,
			"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_pro"}}]}}}}`

		ev, err := newStripeParser(t).Parse(stripeRequest(t, payload))
		require.NoError(t, err)
		assert.Equal(t, subscription.EventSubscriptionUpdated, ev.Type)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.Equal(t, "price_pro", ev.PriceID)
		assert.Equal(t, "trialing", ev.Status)
		require.NotNil(t, ev.TrialEnd)
		assert.Equal(t, int64(1769904000), ev.TrialEnd.Unix())
	})

	t.Run("payment intent succeeded", func(t *testing.T) {
		t.Parallel()
		invoiceID := uuid.NewString()
		payload := fmt.Sprintf(`{"id":"evt_2","object":"event","type":"payment_intent.succeeded","created":1767225600,
			"data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"invoice_id":%q}}}}`, invoiceID)

		ev, err := newStripeParser(t).Parse(stripeRequest(t, payload))
		require.NoError(t, err)
		assert.Equal(t, subscription.EventPaymentCompleted, ev.Type)
		assert.Equal(t, invoiceID, ev.InvoiceID)
		assert.Equal(t, "pi_1", ev.PaymentReference)
		assert.Equal(t, int64(1767225600), ev.PaidAt.Unix())
	})

	t.Run("checkout session prefers payment intent reference", func(t *testing.T) {
		t.Parallel()
		payload := `{"id":"evt_3","object":"event","type":"checkout.session.completed","created":1767225600,
			"data":{"object":{"id":"cs_1","object":"checkout.session","payment_intent":"pi_9","metadata":{"invoice_id":"abc"}}}}`

		ev, err := newStripeParser(t).Parse(stripeRequest(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "pi_9", ev.PaymentReference)
		assert.Equal(t, "abc", ev.InvoiceID)
	})

	t.Run("foreign event type", func(t *testing.T) {
		t.Parallel()
		payload := `{"id":"evt_4","object":"event","type":"invoice.created","data":{"object":{"id":"in_1"}}}`
		ev, err := newStripeParser(t).Parse(stripeRequest(t, payload))
		require.NoError(t, err)
		assert.Equal(t, subscription.EventUnknown, ev.Type)
		assert.Equal(t, "invoice.created", ev.RawType)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"evt"}`))
		r.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		_, err := newStripeParser(t).Parse(r)
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewStripeParser(subscription.StripeConfig{})
		assert.ErrorIs(t, err, subscription.ErrMissingSecret)
	})
}

const paddleSecret = "pdl_ntfset_secret"

func paddleRequest(payload string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(paddleSecret))
	mac.Write([]byte(ts + ":" + payload))
	r := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader(payload))
	r.Header.Set("Paddle-Signature", "ts="+ts+";h1="+hex.EncodeToString(mac.Sum(nil)))
	return r
}

func TestPaddleParser(t *testing.T) {
	t.Parallel()

	p, err := subscription.NewPaddleParser(subscription.PaddleConfig{WebhookSecret: paddleSecret})
	require.NoError(t, err)

	t.Run("subscription canceled downgrades", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_p1","event_type":"subscription.canceled","occurred_at":"2026-01-01T00:00:00Z",
			"data":{"id":"sub_p1","status":"canceled","customer_id":"ctm_1","items":[{"price":{"id":"pri_1"}}]}}`
		ev, err := p.Parse(paddleRequest(payload))
		require.NoError(t, err)
		assert.Equal(t, subscription.EventSubscriptionDeleted, ev.Type)
		assert.Equal(t, "ctm_1", ev.CustomerID)
		assert.Equal(t, "pri_1", ev.PriceID)
	})

	t.Run("transaction completed", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_p2","event_type":"transaction.completed","occurred_at":"2026-01-02T00:00:00Z",
			"data":{"id":"txn_1","customer_id":"ctm_1","custom_data":{"invoice_id":"inv-1"}}}`
		ev, err := p.Parse(paddleRequest(payload))
		require.NoError(t, err)
		assert.Equal(t, subscription.EventPaymentCompleted, ev.Type)
		assert.Equal(t, "inv-1", ev.InvoiceID)
		assert.Equal(t, "txn_1", ev.PaymentReference)
		assert.Equal(t, 2026, ev.PaidAt.Year())
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		r := paddleRequest(`{"event_type":"subscription.updated"}`)
		r.Body = http.NoBody
		_, err := p.Parse(r)
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})
}

type stubParser struct {
	ev  *subscription.Event
	err error
}

func (s stubParser) Provider() string { return "stub" }

func (s stubParser) Parse(*http.Request) (*subscription.Event, error) { return s.ev, s.err }

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	serve := func(p subscription.Parser, store *fakeStore) int {
		h := subscription.WebhookHandler(p, newReconciler(store), telemetry.New(telemetry.Config{Namespace: "t"}), nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		return w.Code
	}

	t.Run("parse error is 400", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, http.StatusBadRequest, serve(stubParser{err: subscription.ErrInvalidSignature}, newFakeStore()))
	})

	t.Run("reconcile fault is 500", func(t *testing.T) {
		t.Parallel()
		s := newFakeStore()
		s.failWith = errors.New("db down")
		ev := &subscription.Event{Type: subscription.EventSubscriptionUpdated, CustomerID: "cus_1", PriceID: "price_pro", Status: "active"}
		assert.Equal(t, http.StatusInternalServerError, serve(stubParser{ev: ev}, s))
	})

	t.Run("irrelevant event is 200", func(t *testing.T) {
		t.Parallel()
		ev := &subscription.Event{Type: subscription.EventSubscriptionUpdated, CustomerID: "cus_unknown"}
		assert.Equal(t, http.StatusOK, serve(stubParser{ev: ev}, newFakeStore()))
	})

	t.Run("end to end stripe payment", func(t *testing.T) {
		t.Parallel()
		s := newFakeStore()
		id := uuid.New()
		s.invoices[id] = &invoice{}
		payload := fmt.Sprintf(`{"id":"evt_5","object":"event","type":"payment_intent.succeeded","created":1767225600,
			"data":{"object":{"id":"ref-123","object":"payment_intent","metadata":{"invoice_id":%q}}}}`, id)

		h := subscription.WebhookHandler(newStripeParser(t), newReconciler(s), nil, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, stripeRequest(t, payload))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, s.invoices[id].paid)
		assert.Equal(t, "ref-123", s.invoices[id].reference)
	})
}
