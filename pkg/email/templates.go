package email

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.924 generate

// Render renders a component into a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func InvitationBody(accountName, role, link string) templ.Component {
	return layout("You have been invited to "+accountName, []string{
		"You were added to " + accountName + " as " + role + ".",
		"Sign in to start working with your team.",
	}, "Open "+accountName, link)
}

func InvoiceReminderBody(clientName, number, amount, dueDate string) templ.Component {
	return layout("Invoice "+number+" reminder", []string{
		"Hello " + clientName + ",",
		"This is a reminder that invoice " + number + " for " + amount + " is due on " + dueDate + ".",
		"The invoice is attached to this message when available.",
	}, "", "")
}

func ExportReadyBody(kind, link, expires string) templ.Component {
	return layout("Your "+kind+" export is ready", []string{
		"The export you requested has finished.",
		"The download link stays valid until " + expires + ".",
	}, "Download "+kind, link)
}
