// Package generator produces a filled PDF for one case and template type.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"casedocs/internal/masterdata"
	"casedocs/internal/pdffill/bloodline"
	"casedocs/internal/pdffill/filler"
	"casedocs/internal/pdffill/mapping"
	"casedocs/internal/pdffill/pdfform"
	"casedocs/internal/platform/metrics"
	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/sentinel"
)

// TemplateSource returns template binaries by object name.
type TemplateSource interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// Document is a loaded template that can be filled and rendered.
type Document interface {
	filler.Form
	Bytes() ([]byte, error)
}

// Loader parses a template binary.
type Loader func(pdf []byte) (Document, error)

// LoadPDF is the pdfcpu-backed Loader.
func LoadPDF(pdf []byte) (Document, error) {
	return pdfform.Load(pdf)
}

// Output is a rendered document and its fill report.
type Output struct {
	Template mapping.TemplateType
	PDF      []byte
	Result   filler.Result
}

type Generator struct {
	records   masterdata.Store
	templates TemplateSource
	tables    *mapping.Registry
	load      Loader
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func WithLoader(load Loader) Option {
	return func(g *Generator) {
		g.load = load
	}
}

func New(records masterdata.Store, templates TemplateSource, tables *mapping.Registry, opts ...Option) (*Generator, error) {
	if records == nil {
		return nil, errors.New("master data store is required")
	}
	if templates == nil {
		return nil, errors.New("template source is required")
	}
	if tables == nil {
		return nil, errors.New("mapping registry is required")
	}
	g := &Generator{
		records:   records,
		templates: templates,
		tables:    tables,
		load:      LoadPDF,
		logger:    slog.Default(),
		tracer:    otel.Tracer("casedocs/generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate fetches the case record and the template concurrently, fills the
// template and renders it. Per-field problems are reported in Result, not as errors.
func (g *Generator) Generate(ctx context.Context, caseID string, tt mapping.TemplateType) (*Output, error) {
	ctx, span := g.tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.String("case_id", caseID),
		attribute.String("template", tt.String()),
	))
	defer span.End()

	start := time.Now()
	doc, table, record, err := g.prepare(ctx, caseID, tt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out, err := g.fill(doc, table, record)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	g.metrics.ObserveGenerateLatency(tt.String(), time.Since(start))
	g.logger.InfoContext(ctx, "document generated",
		"case_id", caseID,
		"template", tt.String(),
		"coverage", out.Result.Coverage(),
		"empty_fields", len(out.Result.EmptyFields),
		"field_errors", len(out.Result.Errors),
	)
	return out, nil
}

// Preview fills the template in memory and returns only the report.
func (g *Generator) Preview(ctx context.Context, caseID string, tt mapping.TemplateType) (filler.Result, error) {
	doc, table, record, err := g.prepare(ctx, caseID, tt)
	if err != nil {
		return filler.Result{}, err
	}
	return g.apply(doc, table, record), nil
}

// FillBytes fills a template binary from a record without touching any store.
func (g *Generator) FillBytes(pdf []byte, tt mapping.TemplateType, record masterdata.Record) (*Output, error) {
	table, err := g.tables.Table(tt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported template type")
	}
	doc, err := g.load(pdf)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "template is not a fillable PDF")
	}
	return g.fill(doc, table, sourceFor(tt, record))
}

func (g *Generator) prepare(ctx context.Context, caseID string, tt mapping.TemplateType) (Document, *mapping.Table, masterdata.Record, error) {
	table, err := g.tables.Table(tt)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unsupported template type")
	}

	var (
		record   masterdata.Record
		template []byte
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		r, err := g.records.Get(egCtx, caseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "case master data not found")
			}
			return fmt.Errorf("fetch master data: %w", err)
		}
		record = r
		return nil
	})
	eg.Go(func() error {
		b, err := g.templates.Get(egCtx, tt.ObjectName())
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "template not found")
			}
			return fmt.Errorf("fetch template: %w", err)
		}
		template = b
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, nil, err
	}

	doc, err := g.load(template)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load template %s: %w", tt.ObjectName(), err)
	}
	return doc, table, sourceFor(tt, record), nil
}

// sourceFor overlays the bloodline view for templates that need it.
func sourceFor(tt mapping.TemplateType, record masterdata.Record) masterdata.Record {
	if !tt.UsesBloodline() {
		return record
	}
	return record.Merge(bloodline.Resolve(record).Fields())
}

func (g *Generator) apply(doc Document, table *mapping.Table, record masterdata.Record) filler.Result {
	res := filler.Fill(doc, table, record)
	g.metrics.ObserveFill(table.Template.String(), res.Coverage(), len(res.Errors))
	return res
}

func (g *Generator) fill(doc Document, table *mapping.Table, record masterdata.Record) (*Output, error) {
	res := g.apply(doc, table, record)
	pdf, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", table.Template, err)
	}
	return &Output{Template: table.Template, PDF: pdf, Result: res}, nil
}
