package document

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/billingkit/pkg/file"
	"github.com/dmitrymomot/billingkit/pkg/logger"
)

var ErrNothingToArchive = errors.New("document.nothing_to_archive")

// Archiver keeps a copy of every generated PDF in object storage.
type Archiver struct {
	storage file.Storage
	log     *slog.Logger
}

func NewArchiver(storage file.Storage, log *slog.Logger) *Archiver {
	if log == nil {
		log = logger.Discard()
	}
	return &Archiver{storage: storage, log: log}
}

// Key returns "{tenant}/documents/{filename}".
func (a *Archiver) Key(doc Document, res Result) string {
	return file.Key(doc.AccountID.String(), "documents", file.SanitizeFilename(res.Filename))
}

// Archive stores a successful result and returns its key.
func (a *Archiver) Archive(ctx context.Context, doc Document, res Result) (string, error) {
	if !res.OK || len(res.Data) == 0 {
		return "", ErrNothingToArchive
	}

	key := a.Key(doc, res)
	if _, err := a.storage.Put(ctx, key, "application/pdf", res.Data); err != nil {
		a.log.ErrorContext(ctx, "failed to archive document",
			logger.Component("document"),
			logger.TenantID(doc.AccountID),
			slog.String("key", key),
			logger.Error(err),
		)
		return "", err
	}
	return key, nil
}
