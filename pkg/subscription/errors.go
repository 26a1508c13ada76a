package subscription

import "errors"

var (
	ErrAccountNotFound = errors.New("subscription.account_not_found")
	ErrPlanNotFound    = errors.New("subscription.plan_not_found")
	ErrInvoiceNotFound = errors.New("subscription.invoice_not_found")

	ErrInvalidSignature = errors.New("subscription.invalid_signature")
	ErrInvalidPayload   = errors.New("subscription.invalid_payload")
	ErrPayloadTooLarge  = errors.New("subscription.payload_too_large")
	ErrMissingSecret    = errors.New("subscription.missing_webhook_secret")

	ErrReconcile = errors.New("subscription.reconcile_failed")
)
