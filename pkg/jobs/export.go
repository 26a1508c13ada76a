package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/file"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// ExportKind names a dataset that can be exported.
type ExportKind string

const (
	ExportClients     ExportKind = "clients"
	ExportInvoices    ExportKind = "invoices"
	ExportMemberships ExportKind = "memberships"
)

// ExportKinds is the allow-list of exportable datasets.
var ExportKinds = []ExportKind{ExportClients, ExportInvoices, ExportMemberships}

// ParseExportKind validates raw against the allow-list.
func ParseExportKind(raw string) (ExportKind, error) {
	k := ExportKind(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(ExportKinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownExport, raw)
	}
	return k, nil
}

// ExportData asks for a CSV export of one dataset of an account.
type ExportData struct {
	AccountID   uuid.UUID `json:"account_id"`
	Kind        string    `json:"kind"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// ExportResult is the structured outcome of an export. Err is set when OK is false.
type ExportResult struct {
	OK   bool
	Key  string
	URL  string
	Rows int
	Err  error
}

// ExportData builds the CSV, uploads it and emails a download link to the
// requester. It never panics; every failure is reported through the result.
func (r *Runner) ExportData(ctx context.Context, p ExportData) (res ExportResult) {
	log := r.log.With(
		logger.TenantID(p.AccountID),
		logger.UserID(p.RequestedBy),
		slog.String("export_kind", p.Kind),
	)

	defer func() {
		if rec := recover(); rec != nil {
			res = ExportResult{Err: fmt.Errorf("export panic: %v", rec)}
		}
		switch {
		case res.OK:
			log.InfoContext(ctx, "export completed", slog.String("key", res.Key), logger.Count(int64(res.Rows)))
		case errors.Is(res.Err, ErrUnknownExport), errors.Is(res.Err, ErrMissingAccount), errors.Is(res.Err, ErrRecordNotFound):
			log.WarnContext(ctx, "export rejected", logger.Error(res.Err))
		default:
			log.ErrorContext(ctx, "export failed", logger.Error(res.Err))
		}
	}()

	if p.AccountID == uuid.Nil {
		return ExportResult{Err: ErrMissingAccount}
	}
	kind, err := ParseExportKind(p.Kind)
	if err != nil {
		return ExportResult{Err: err}
	}

	columns, rows, err := r.Exports.ExportRows(ctx, p.AccountID, kind)
	if err != nil {
		return ExportResult{Err: fmt.Errorf("load %s: %w", kind, err)}
	}

	body, err := encodeCSV(columns, rows)
	if err != nil {
		return ExportResult{Err: err}
	}

	name := fmt.Sprintf("%s-%s.csv", kind, r.now().UTC().Format("20060102-150405"))
	key := file.Key(p.AccountID.String(), "exports", name)
	if _, err := r.Storage.Put(ctx, key, "text/csv", body); err != nil {
		return ExportResult{Err: fmt.Errorf("upload export: %w", err)}
	}

	url, err := r.Storage.URL(ctx, key, r.cfg.ExportLinkTTL)
	if err != nil {
		return ExportResult{Err: fmt.Errorf("sign export link: %w", err)}
	}

	res = ExportResult{OK: true, Key: key, URL: url, Rows: len(rows)}

	// The file is stored; a missing recipient only skips the notification.
	to, err := r.Lookup.UserEmail(ctx, p.RequestedBy)
	if err != nil {
		log.WarnContext(ctx, "export requester has no email", logger.Error(err))
		return res
	}

	expires := r.now().Add(r.cfg.ExportLinkTTL).UTC().Format("January 2, 2006 15:04 MST")
	html, err := email.Render(ctx, email.ExportReadyBody(string(kind), url, expires))
	if err != nil {
		return ExportResult{Key: key, Rows: len(rows), Err: err}
	}
	if err := r.Mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  fmt.Sprintf("Your %s export is ready", kind),
		BodyHTML: html,
		Tag:      "export",
	}); err != nil {
		return ExportResult{Key: key, URL: url, Rows: len(rows), Err: fmt.Errorf("send export email: %w", err)}
	}

	return res
}

// Retryable reports whether the failure is a transient infrastructure fault.
func (res ExportResult) Retryable() bool {
	return res.Err != nil && pg.IsTransient(res.Err)
}

func encodeCSV(columns []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	caser := cases.Title(language.English)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = caser.String(strings.ReplaceAll(c, "_", " "))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
