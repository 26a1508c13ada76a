package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
)

// Result is the outcome of a generation attempt.
// Data and Filename are set only when OK is true.
type Result struct {
	OK       bool
	Data     []byte
	Filename string
	Err      error
}

// Generator renders documents to PDF.
type Generator struct {
	converter Converter
	templates map[Kind]Template
	page      PageOptions
	metrics   *telemetry.Collector
	log       *slog.Logger
}

type GeneratorOption func(*Generator)

// WithTemplate overrides the template used for kind.
func WithTemplate(kind Kind, t Template) GeneratorOption {
	return func(g *Generator) {
		g.templates[kind] = t
	}
}

func WithPageOptions(p PageOptions) GeneratorOption {
	return func(g *Generator) {
		g.page = p
	}
}

func WithTelemetry(c *telemetry.Collector) GeneratorOption {
	return func(g *Generator) {
		g.metrics = c
	}
}

func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator creates a generator that prints Letter pages with DefaultTemplate.
func NewGenerator(converter Converter, opts ...GeneratorOption) *Generator {
	g := &Generator{
		converter: converter,
		templates: map[Kind]Template{
			Invoice:  DefaultTemplate,
			Estimate: DefaultTemplate,
		},
		page: LetterPage(),
		log:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders doc. It never panics and never returns a partial result.
func (g *Generator) Generate(ctx context.Context, doc Document) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%w: %v", ErrGeneratorPanic, r)}
		}
		g.report(ctx, doc, res)
	}()

	if !doc.Persisted() {
		return Result{Err: ErrNotPersisted}
	}

	tmpl, ok := g.templates[doc.Kind]
	if !ok || !doc.Kind.Valid() {
		return Result{Err: fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)}
	}

	var html bytes.Buffer
	if err := tmpl(doc).Render(ctx, &html); err != nil {
		return Result{Err: errors.Join(ErrRenderFailed, err)}
	}

	data, err := g.converter.Convert(ctx, html.Bytes(), g.page)
	if err != nil {
		if !errors.Is(err, ErrConvertFailed) && !errors.Is(err, ErrEngineOpen) {
			err = errors.Join(ErrConvertFailed, err)
		}
		return Result{Err: err}
	}
	if len(data) == 0 {
		return Result{Err: ErrEmptyOutput}
	}

	return Result{OK: true, Data: data, Filename: doc.Filename()}
}

func (g *Generator) report(ctx context.Context, doc Document, res Result) {
	if res.OK {
		g.metrics.DocumentGenerated(string(doc.Kind), telemetry.OutcomeOK)
		g.log.DebugContext(ctx, "document generated",
			logger.Component("document"),
			slog.String("filename", res.Filename),
			slog.Int("bytes", len(res.Data)),
		)
		return
	}

	outcome := telemetry.OutcomeFailed
	level := slog.LevelError
	if errors.Is(res.Err, ErrNotPersisted) || errors.Is(res.Err, ErrUnknownKind) {
		outcome = telemetry.OutcomeRejected
		level = slog.LevelWarn
	}
	g.metrics.DocumentGenerated(string(doc.Kind), outcome)
	g.log.Log(ctx, level, "document generation failed",
		logger.Component("document"),
		slog.String("kind", string(doc.Kind)),
		slog.String("number", doc.Number),
		logger.Error(res.Err),
	)
}
