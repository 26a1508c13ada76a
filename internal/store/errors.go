package store

import "errors"

var (
	ErrNotFound           = errors.New("store.not_found")
	ErrInvalidCredentials = errors.New("store.invalid_credentials")
	ErrEmailTaken         = errors.New("store.email_taken")
	ErrInvoicePaid        = errors.New("store.invoice_paid")
	ErrInvalidTransition  = errors.New("store.invalid_status_transition")
)
