// Package document renders invoices and estimates into PDF files.
//
// A Generator binds a Document to an HTML template (a-h/templ), hands the
// markup to a Converter and returns a Result. Generation never panics or
// returns a bare error to the caller: every failure is captured in
// Result.Err so mailers can check Result.OK before attaching the output.
//
//	gen := document.NewGenerator(document.NewBreakerConverter(chrome, cfg))
//	res := gen.Generate(ctx, doc)
//	if res.OK {
//		// attach res.Data as res.Filename
//	}
package document

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the document type.
type Kind string

const (
	Invoice  Kind = "invoice"
	Estimate Kind = "estimate"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Invoice || k == Estimate
}

// Title is the human-readable kind used in filenames and headings.
func (k Kind) Title() string {
	switch k {
	case Invoice:
		return "Invoice"
	case Estimate:
		return "Estimate"
	default:
		return ""
	}
}

// Status is where a document is in its lifecycle.
type Status string

const (
	Draft    Status = "draft"
	Sent     Status = "sent"
	Canceled Status = "canceled"
	// Paid is set by payment processing only.
	Paid Status = "paid"
)

// CanMoveTo reports whether an edit may move a document from s to next.
// Documents only move forward: draft to sent, draft or sent to canceled.
// Canceled and paid are final. Keeping the current status is allowed.
func (s Status) CanMoveTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case Draft:
		return next == Sent || next == Canceled
	case Sent:
		return next == Canceled
	default:
		return false
	}
}

// Line is a single billable row.
type Line struct {
	Description string
	Quantity    float64
	UnitCents   int64
}

// TotalCents returns quantity × unit price rounded to the nearest cent.
func (l Line) TotalCents() int64 {
	return int64(math.Round(l.Quantity * float64(l.UnitCents)))
}

// Document is the data bound to a template.
type Document struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Kind        Kind
	Status      Status
	Number      string
	AccountName string
	ClientName  string
	ClientEmail string
	IssuedAt    time.Time
	DueAt       time.Time
	Currency    string
	Lines       []Line
	Notes       string
}

// Persisted reports whether the document has been stored.
func (d Document) Persisted() bool {
	return d.ID != uuid.Nil
}

// Remindable reports whether the client can be asked to pay: a sent invoice.
// Drafts, estimates and paid or canceled invoices are not remindable.
func (d Document) Remindable() bool {
	return d.Kind == Invoice && d.Status == Sent
}

// TotalCents sums all lines.
func (d Document) TotalCents() int64 {
	var total int64
	for _, l := range d.Lines {
		total += l.TotalCents()
	}
	return total
}

// Filename returns "{Invoice|Estimate}-{number}.pdf".
func (d Document) Filename() string {
	return fmt.Sprintf("%s-%s.pdf", d.Kind.Title(), d.Number)
}

// FormatAmount renders cents as "USD 1,234.50".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := fmt.Sprintf("%s%s.%02d", sign, b.String(), cents%100)
	if currency == "" {
		return out
	}
	return strings.ToUpper(currency) + " " + out
}
