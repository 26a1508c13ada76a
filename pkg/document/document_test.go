package document_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/document"
	"github.com/dmitrymomot/billingkit/pkg/file"
)

func sampleDoc() document.Document {
	return document.Document{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		Kind:        document.Invoice,
		Number:      "2025-001",
		AccountName: "Acme",
		ClientName:  "Globex <script>",
		ClientEmail: "billing@globex.test",
		IssuedAt:    time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		DueAt:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Currency:    "usd",
		Lines: []document.Line{
			{Description: "Consulting", Quantity: 2, UnitCents: 150000},
			{Description: "Hosting", Quantity: 1, UnitCents: 4900},
		},
	}
}

// echoConverter returns the HTML it was given so tests can inspect the markup.
func echoConverter(calls *atomic.Int32, got *document.PageOptions) document.Converter {
	return document.ConverterFunc(func(_ context.Context, html []byte, opts document.PageOptions) ([]byte, error) {
		calls.Add(1)
		if got != nil {
			*got = opts
		}
		return append([]byte("%PDF:"), html...), nil
	})
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		var page document.PageOptions
		gen := document.NewGenerator(echoConverter(&calls, &page))

		res := gen.Generate(context.Background(), sampleDoc())
		require.True(t, res.OK, "%v", res.Err)
		assert.NoError(t, res.Err)
		assert.Equal(t, "Invoice-2025-001.pdf", res.Filename)
		assert.True(t, bytes.HasPrefix(res.Data, []byte("%PDF:")))
		assert.Contains(t, string(res.Data), "USD 3,049.00")
		assert.NotContains(t, string(res.Data), "<script>")
		assert.Equal(t, document.LetterPage(), page)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("estimate filename", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		doc := sampleDoc()
		doc.Kind = document.Estimate
		doc.Number = "E-9"

		res := document.NewGenerator(echoConverter(&calls, nil)).Generate(context.Background(), doc)
		require.True(t, res.OK)
		assert.Equal(t, "Estimate-E-9.pdf", res.Filename)
		assert.Contains(t, string(res.Data), "Valid until")
	})

	t.Run("unpersisted is rejected without rendering", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		doc := sampleDoc()
		doc.ID = uuid.Nil

		res := document.NewGenerator(echoConverter(&calls, nil)).Generate(context.Background(), doc)
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, document.ErrNotPersisted)
		assert.Nil(t, res.Data)
		assert.Zero(t, calls.Load())
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		doc := sampleDoc()
		doc.Kind = "receipt"

		res := document.NewGenerator(echoConverter(&calls, nil)).Generate(context.Background(), doc)
		assert.ErrorIs(t, res.Err, document.ErrUnknownKind)
	})

	t.Run("template error is captured", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		broken := func(document.Document) templ.Component {
			return templ.ComponentFunc(func(context.Context, io.Writer) error {
				return errors.New("boom")
			})
		}

		res := document.NewGenerator(echoConverter(&calls, nil), document.WithTemplate(document.Invoice, broken)).
			Generate(context.Background(), sampleDoc())
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, document.ErrRenderFailed)
		assert.Zero(t, calls.Load())
	})

	t.Run("converter error is captured", func(t *testing.T) {
		t.Parallel()
		conv := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
			return nil, errors.New("chrome crashed")
		})

		res := document.NewGenerator(conv).Generate(context.Background(), sampleDoc())
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, document.ErrConvertFailed)
		assert.Empty(t, res.Filename)
	})

	t.Run("converter panic is captured", func(t *testing.T) {
		t.Parallel()
		conv := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
			panic("nil deref")
		})

		var res document.Result
		require.NotPanics(t, func() {
			res = document.NewGenerator(conv).Generate(context.Background(), sampleDoc())
		})
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, document.ErrGeneratorPanic)
	})

	t.Run("empty output", func(t *testing.T) {
		t.Parallel()
		conv := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
			return nil, nil
		})

		res := document.NewGenerator(conv).Generate(context.Background(), sampleDoc())
		assert.ErrorIs(t, res.Err, document.ErrEmptyOutput)
	})
}

func TestBreakerConverter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	failing := document.ConverterFunc(func(context.Context, []byte, document.PageOptions) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("engine down")
	})

	conv := document.NewBreakerConverter(failing, document.Config{
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, nil)

	for range 2 {
		_, err := conv.Convert(context.Background(), []byte("<p>x</p>"), document.LetterPage())
		require.Error(t, err)
		assert.NotErrorIs(t, err, document.ErrEngineOpen)
	}

	_, err := conv.Convert(context.Background(), []byte("<p>x</p>"), document.LetterPage())
	assert.ErrorIs(t, err, document.ErrEngineOpen)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "open", conv.State())

	res := document.NewGenerator(conv).Generate(context.Background(), sampleDoc())
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, document.ErrEngineOpen)
}

func TestArchiver(t *testing.T) {
	t.Parallel()

	storage, err := file.NewLocalStorage(t.TempDir(), "/files/")
	require.NoError(t, err)
	archiver := document.NewArchiver(storage, nil)

	doc := sampleDoc()
	var calls atomic.Int32
	res := document.NewGenerator(echoConverter(&calls, nil)).Generate(context.Background(), doc)
	require.True(t, res.OK)

	key, err := archiver.Archive(context.Background(), doc, res)
	require.NoError(t, err)
	assert.Equal(t, doc.AccountID.String()+"/documents/Invoice-2025-001.pdf", key)

	data, err := storage.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, res.Data, data)

	_, err = archiver.Archive(context.Background(), doc, document.Result{Err: document.ErrNotPersisted})
	assert.ErrorIs(t, err, document.ErrNothingToArchive)
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{0, "usd", "USD 0.00"},
		{4900, "usd", "USD 49.00"},
		{123456789, "eur", "EUR 1,234,567.89"},
		{-250, "", "-2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, document.FormatAmount(tt.cents, tt.currency))
	}

	assert.True(t, strings.HasPrefix(document.FormatAmount(100000, "gbp"), "GBP 1,000"))
}

func TestStatus_CanMoveTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to document.Status
		want     bool
	}{
		{document.Draft, document.Sent, true},
		{document.Draft, document.Canceled, true},
		{document.Sent, document.Canceled, true},
		{document.Sent, document.Sent, true},
		{document.Sent, document.Draft, false},
		{document.Canceled, document.Sent, false},
		{document.Canceled, document.Draft, false},
		{document.Paid, document.Canceled, false},
		{document.Draft, document.Paid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanMoveTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDocument_Remindable(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	doc.Status = document.Sent
	assert.True(t, doc.Remindable())

	for _, s := range []document.Status{document.Draft, document.Canceled, document.Paid} {
		doc.Status = s
		assert.False(t, doc.Remindable(), s)
	}

	doc.Status = document.Sent
	doc.Kind = document.Estimate
	assert.False(t, doc.Remindable())
}
