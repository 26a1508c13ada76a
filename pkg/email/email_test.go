package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/email"
)

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	valid := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "billing@example.com",
		SupportEmail:         "support@example.com",
	}

	client, err := email.NewPostmarkClient(valid)
	require.NoError(t, err)
	assert.NotNil(t, client)

	missing := valid
	missing.PostmarkServerToken = ""
	_, err = email.NewPostmarkClient(missing)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	badSender := valid
	badSender.SenderEmail = "nope"
	_, err = email.NewPostmarkClient(badSender)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestNewSender_FallsBackToDev(t *testing.T) {
	t.Parallel()

	s, err := email.NewSender(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	ok := email.SendEmailParams{SendTo: "a@example.com", Subject: "Hi", BodyHTML: "<p>x</p>"}
	assert.NoError(t, ok.Validate())

	noTo := ok
	noTo.SendTo = ""
	assert.ErrorIs(t, noTo.Validate(), email.ErrInvalidParams)

	emptyAttachment := ok
	emptyAttachment.Attachments = []email.Attachment{{Name: "Invoice-1.pdf"}}
	assert.ErrorIs(t, emptyAttachment.Validate(), email.ErrInvalidParams)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := email.NewDevSender(dir)

	err := s.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "client@example.com",
		Subject:  "Invoice INV-7 reminder",
		BodyHTML: "<p>due</p>",
		Tag:      "invoice-reminder",
		Attachments: []email.Attachment{
			{Name: "Invoice-INV-7.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var metaFile string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			metaFile = e.Name()
		}
	}
	require.NotEmpty(t, metaFile)

	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "client@example.com", meta["send_to"])
	assert.Len(t, meta["attachments"], 1)
}

func TestTemplates_EscapeInput(t *testing.T) {
	t.Parallel()

	html, err := email.Render(context.Background(),
		email.InvitationBody(`<script>alert(1)</script>`, "member", "https://acme.example.com/sign-in"))
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, `href="https://acme.example.com/sign-in"`)

	html, err = email.Render(context.Background(), email.InvoiceReminderBody("Ada", "INV-7", "$49.00", "2026-07-01"))
	require.NoError(t, err)
	assert.Contains(t, html, "INV-7")
}
