package document

import (
	"strconv"

	"github.com/a-h/templ"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.924 generate

// Template binds a document to markup.
type Template func(Document) templ.Component

const dateLayout = "January 2, 2006"

// DefaultTemplate renders a print-ready page with a line table and totals.
// All document fields are escaped.
func DefaultTemplate(doc Document) templ.Component {
	return page(doc)
}

func dueLabel(k Kind) string {
	if k == Estimate {
		return "Valid until"
	}
	return "Due"
}

func quantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
