package subscription

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is an account's subscription state.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusPaused   Status = "paused"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusPaused}

func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusPaused:
		return true
	}
	return false
}

// Paying reports whether the status counts towards recurring revenue.
func (s Status) Paying() bool {
	return s == StatusActive || s == StatusTrialing
}

// MapStatus translates a processor status. Unrecognised values return false;
// the caller decides what to keep.
func MapStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trialing":
		return StatusTrialing, true
	case "active":
		return StatusActive, true
	case "past_due":
		return StatusPastDue, true
	case "canceled", "cancelled", "unpaid":
		return StatusCanceled, true
	case "paused":
		return StatusPaused, true
	}
	return "", false
}

type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan is a priced offering. PriceID is the processor's price identifier.
type Plan struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceID    string    `json:"price_id"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Interval   Interval  `json:"interval"`
	Free       bool      `json:"free"`
}

// MonthlyCents normalises the price to one month. Yearly prices are divided by 12.
func (p Plan) MonthlyCents() float64 {
	if p.Free {
		return 0
	}
	if p.Interval == IntervalYear {
		return float64(p.PriceCents) / 12
	}
	return float64(p.PriceCents)
}

// Account is the billing view of a tenant.
type Account struct {
	ID          uuid.UUID  `json:"id"`
	CustomerID  string     `json:"customer_id"`
	PlanID      uuid.UUID  `json:"plan_id"`
	Status      Status     `json:"status"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
}
