// Package export renders quotes and invoices as PDF, Word (.docx) and JSON
// artifacts. All formats carry the same information in the same order; only
// the JSON form is meant to be parsed by other systems.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/observability/metrics"
)

// ErrMalformedDocument means a structural field (number, currency, items)
// is missing. No artifact is produced.
var ErrMalformedDocument = errors.New("malformed document")

var tracer = otel.Tracer("github.com/quotla/quotla-api/internal/export")

// DocType selects between quote and invoice wording.
type DocType string

const (
	TypeQuote   DocType = "quote"
	TypeInvoice DocType = "invoice"
)

// Format is an output representation.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatWord Format = "docx"
	FormatJSON Format = "json"
)

func ParseDocType(s string) (DocType, error) {
	switch t := DocType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeQuote, TypeInvoice:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", billing.ErrInvalidInput, s)
}

// ParseFormat accepts pdf, docx (or word) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "docx", "word":
		return FormatWord, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", billing.ErrInvalidInput, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/json"
	}
}

// Request carries the document to render. Exactly the field matching Type
// must be set.
type Request struct {
	Type    DocType
	Format  Format
	Quote   *billing.Quote
	Invoice *billing.Invoice
	Profile billing.Profile
}

// Artifact is a rendered file.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

type pdfRenderer interface {
	renderPDF(ctx context.Context, v *view) ([]byte, error)
}

// Exporter renders artifacts. It holds no per-request state.
type Exporter struct {
	cfg    Config
	brand  rgb
	pdf    pdfRenderer
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	brand, err := parseHexColor(cfg.BrandColor)
	if err != nil {
		logger.Warn("invalid brand color, using default", slog.String("color", cfg.BrandColor))
		brand = defaultBrand
	}
	if cfg.Footer == "" {
		cfg.Footer = defaultFooter
	}
	e := &Exporter{cfg: cfg, brand: brand, logger: logger}
	if cfg.PDFEngine == EngineChromium {
		e.pdf = newChromiumRenderer(cfg)
	} else {
		e.pdf = gofpdfRenderer{compress: cfg.PDFCompress, logger: logger}
	}
	return e
}

// Export validates the request and renders it in the requested format.
func (e *Exporter) Export(ctx context.Context, req Request) (Artifact, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "export.Export")
	defer span.End()
	span.SetAttributes(attribute.String("export.type", string(req.Type)), attribute.String("export.format", string(req.Format)))

	art, err := e.export(ctx, req)
	metrics.RecordExport(string(req.Type), string(req.Format), err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("export failed",
			slog.String("type", string(req.Type)),
			slog.String("format", string(req.Format)),
			slog.String("error", err.Error()))
		return Artifact{}, err
	}
	e.logger.Info("export rendered",
		slog.String("file", art.Filename),
		slog.Int("bytes", len(art.Body)))
	return art, nil
}

func (e *Exporter) export(ctx context.Context, req Request) (Artifact, error) {
	doc, err := documentOf(req)
	if err != nil {
		return Artifact{}, err
	}

	var body []byte
	switch req.Format {
	case FormatJSON:
		body, err = encodeJSON(req)
	case FormatPDF:
		body, err = e.pdf.renderPDF(ctx, e.buildView(req))
	case FormatWord:
		body, err = renderDocx(e.buildView(req))
	default:
		return Artifact{}, fmt.Errorf("%w: unknown export format %q", billing.ErrInvalidInput, req.Format)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", req.Format, err)
	}
	return Artifact{
		Filename:    Filename(req.Type, doc.Number, req.Format),
		ContentType: req.Format.ContentType(),
		Body:        body,
	}, nil
}

// Filename returns <type>-<number>.<ext>. Path separators in the number are
// replaced so the name is always a single path element.
func Filename(t DocType, number string, f Format) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, number)
	return fmt.Sprintf("%s-%s.%s", t, safe, f)
}

func documentOf(req Request) (billing.Document, error) {
	var doc billing.Document
	switch req.Type {
	case TypeQuote:
		if req.Quote == nil {
			return doc, fmt.Errorf("%w: quote export without a quote", ErrMalformedDocument)
		}
		doc = req.Quote.Document
	case TypeInvoice:
		if req.Invoice == nil {
			return doc, fmt.Errorf("%w: invoice export without an invoice", ErrMalformedDocument)
		}
		doc = req.Invoice.Document
	default:
		return doc, fmt.Errorf("%w: unknown document type %q", billing.ErrInvalidInput, req.Type)
	}
	if strings.TrimSpace(doc.Number) == "" {
		return doc, fmt.Errorf("%w: document number is missing", ErrMalformedDocument)
	}
	if doc.Currency == "" {
		return doc, fmt.Errorf("%w: currency is missing", ErrMalformedDocument)
	}
	if doc.Items == nil {
		return doc, fmt.Errorf("%w: items are missing", ErrMalformedDocument)
	}
	return doc, nil
}
