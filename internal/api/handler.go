// Package api exposes the billing core over HTTP: totals, currency
// conversion, quote-to-invoice transformation, document export and AI
// description drafting.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
	"github.com/quotla/quotla-api/internal/money"
)

// Describer drafts line-item descriptions.
type Describer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service wires the domain packages into HTTP handlers.
type Service struct {
	cfg       Config
	fx        *fx.Service
	exporter  *export.Exporter
	describer Describer
	audit     AuditRecorder
	auditMu   sync.Mutex
	numbers   billing.NumberGenerator
	logger    *slog.Logger
}

type Deps struct {
	FX        *fx.Service
	Exporter  *export.Exporter
	Describer Describer
	Audit     AuditRecorder
	Numbers   billing.NumberGenerator
}

func NewService(cfg Config, deps Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		fx:        deps.FX,
		exporter:  deps.Exporter,
		describer: deps.Describer,
		audit:     deps.Audit,
		numbers:   deps.Numbers,
		logger:    logger,
	}
}

type totalsRequest struct {
	Items   []billing.LineItem `json:"items"`
	TaxRate decimal.Decimal    `json:"tax_rate"`
}

type totalsResponse struct {
	Items     []billing.LineItem `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	TaxAmount decimal.Decimal    `json:"tax_amount"`
	Total     decimal.Decimal    `json:"total"`
}

// Totals matches POST /api/totals
func (s *Service) Totals(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIDs(r.Context())
	var req totalsRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeBadJSON(w, corrID, err)
		return
	}
	items, err := billing.RecalculateItems(req.Items)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	totals, err := billing.ComputeTotals(items, req.TaxRate)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	if items == nil {
		items = []billing.LineItem{}
	}
	writeJSON(w, http.StatusOK, corrID, totalsResponse{
		Items:     items,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
	}, nil)
}

type convertRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	From   string           `json:"from"`
	To     string           `json:"to"`
}

// Convert matches POST /api/currency/convert
func (s *Service) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID, tenantID := requestIDs(ctx)
	var req convertRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeBadJSON(w, corrID, err)
		return
	}
	if req.Amount == nil || req.From == "" || req.To == "" {
		writeError(w, corrID, fmt.Errorf("%w: amount, from and to are required", money.ErrInvalidInput))
		return
	}
	conv, err := s.fx.Convert(ctx, *req.Amount, req.From, req.To)
	if err != nil {
		loggerFrom(ctx).Warn("conversion failed", slog.Any("error", err))
		writeError(w, corrID, err)
		return
	}
	s.appendAudit(ctx, tenantID, corrID, "currency.convert", string(conv.From)+">"+string(conv.To))
	writeJSON(w, http.StatusOK, corrID, conv, nil)
}

// Rates matches GET /api/currency/rates?base=
func (s *Service) Rates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID, _ := requestIDs(ctx)
	base := r.URL.Query().Get("base")
	if base == "" {
		base = "USD"
	}
	res, err := s.fx.GetRates(ctx, base)
	if err != nil {
		loggerFrom(ctx).Warn("rates lookup failed", slog.String("base", base), slog.Any("error", err))
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, res, nil)
}

// ToInvoice matches POST /api/quotes/to-invoice
func (s *Service) ToInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID, tenantID := requestIDs(ctx)
	var q billing.Quote
	if err := decodeBody(r.Body, &q); err != nil {
		writeBadJSON(w, corrID, err)
		return
	}
	inv, err := billing.ToInvoice(q, billing.TransformOptions{Numbers: s.numbers})
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	s.appendAudit(ctx, tenantID, corrID, "quote.to_invoice", q.Number+">"+inv.Number)
	loggerFrom(ctx).Info("quote converted", slog.String("quote", q.Number), slog.String("invoice", inv.Number))
	writeJSON(w, http.StatusCreated, corrID, inv, nil)
}

type exportRequest struct {
	Quote   *billing.Quote   `json:"quote"`
	Invoice *billing.Invoice `json:"invoice"`
	Profile billing.Profile  `json:"profile"`
}

// Export matches POST /api/export/{type}?format=
func (s *Service) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID, tenantID := requestIDs(ctx)
	docType, err := export.ParseDocType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	format := export.FormatPDF
	if f := r.URL.Query().Get("format"); f != "" {
		if format, err = export.ParseFormat(f); err != nil {
			writeError(w, corrID, err)
			return
		}
	}
	var req exportRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeBadJSON(w, corrID, err)
		return
	}
	art, err := s.exporter.Export(ctx, export.Request{
		Type:    docType,
		Format:  format,
		Quote:   req.Quote,
		Invoice: req.Invoice,
		Profile: req.Profile,
	})
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	s.appendAudit(ctx, tenantID, corrID, "export."+string(docType)+"."+string(format), art.Filename)

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("X-Correlation-Id", corrID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Body)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// Generate matches POST /api/ai/generate
func (s *Service) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	corrID, _ := requestIDs(ctx)
	var req generateRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeBadJSON(w, corrID, err)
		return
	}
	if s.describer == nil {
		writeJSON(w, http.StatusServiceUnavailable, corrID,
			ErrorBody{Code: "AI_DISABLED", Message: "ai generation is disabled", CorrID: corrID}, nil)
		return
	}
	desc, err := s.describer.Generate(ctx, req.Prompt)
	if err != nil {
		loggerFrom(ctx).Warn("description generation failed", slog.Any("error", err))
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]string{"description": desc}, nil)
}

// Health matches GET /healthz
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIDs(r.Context())
	writeJSON(w, http.StatusOK, corrID, map[string]string{"status": "ok"}, nil)
}

func decodeBody(body io.ReadCloser, v any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

func (s *Service) appendAudit(ctx context.Context, tenantID, corrID, action, subject string) {
	if s.audit == nil {
		return
	}
	entry := AuditLog{
		AuditID:  uuid.NewString(),
		CorrID:   corrID,
		TenantID: tenantID,
		Actor:    "api",
		Action:   action,
		Subject:  subject,
		Ts:       time.Now().UTC(),
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if _, err := HashChain(ctx, s.audit, tenantID, entry); err != nil {
		loggerFrom(ctx).Warn("audit append failed", slog.Any("error", err))
	}
}
