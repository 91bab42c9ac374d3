package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/describe"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubDescriber struct {
	out string
	err error
}

func (s stubDescriber) Generate(_ context.Context, _ string) (string, error) { return s.out, s.err }

type testEnv struct {
	handler http.Handler
	audit   *MemoryAuditRecorder
}

func newTestEnv(t *testing.T, cfg Config, provider fx.RateProvider, desc Describer) testEnv {
	t.Helper()
	if provider == nil {
		provider = fx.ProviderFunc(func(_ context.Context, base string) (map[string]decimal.Decimal, error) {
			if base != "USD" {
				return nil, errors.New("unexpected base " + base)
			}
			return map[string]decimal.Decimal{"USD": d("1"), "EUR": d("0.92"), "GBP": d("0.79")}, nil
		})
	}
	audit := NewMemoryAuditRecorder()
	svc := NewService(cfg, Deps{
		FX:        fx.NewService(provider, fx.NewRateCache(time.Hour), nil),
		Exporter:  export.New(export.Config{PDFEngine: export.EngineGofpdf}, nil),
		Describer: desc,
		Audit:     audit,
	}, nil)
	return testEnv{handler: svc.Router(), audit: audit}
}

func (e testEnv) do(t *testing.T, method, target, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func sampleQuote() billing.Quote {
	return billing.Quote{
		Document: billing.Document{
			ID:        uuid.New(),
			Number:    "QUO-7",
			Client:    &billing.Client{ID: uuid.New(), Name: "Grace Hopper"},
			IssueDate: billing.Date{Time: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
			Currency:  "USD",
			Subtotal:  d("100.00"),
			TaxRate:   d("10"),
			TaxAmount: d("10.00"),
			Total:     d("110.00"),
			Items: []billing.LineItem{
				{ID: uuid.New(), Description: "Audit", Quantity: d("1"), UnitPrice: d("100"), Amount: d("100"), SortOrder: 1},
			},
		},
		Status: billing.QuoteApproved,
		Terms:  "Net 14",
	}
}

func TestTotals(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	rec := env.do(t, http.MethodPost, "/api/totals", "", `{"items":[{"description":"Widget","quantity":2,"unit_price":10.005}],"tax_rate":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var got totalsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Items[0].Amount.Equal(d("20.01")) {
		t.Errorf("amount = %s", got.Items[0].Amount)
	}
	if !got.Subtotal.Equal(d("20.01")) || !got.TaxAmount.Equal(d("2.00")) || !got.Total.Equal(d("22.01")) {
		t.Errorf("totals = %s/%s/%s", got.Subtotal, got.TaxAmount, got.Total)
	}
}

func TestTotals_InvalidTaxRate(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	rec := env.do(t, http.MethodPost, "/api/totals", "", `{"items":[],"tax_rate":120}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "INVALID_INPUT" || body.CorrID == "" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/currency/convert", "tenant-a", map[string]any{"amount": 100, "from": "USD", "to": "EUR"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
		}
		var conv fx.Conversion
		if err := json.NewDecoder(rec.Body).Decode(&conv); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !conv.ConvertedAmount.Equal(d("92.00")) || conv.Stale {
			t.Fatalf("conversion = %+v", conv)
		}
	}

	entries := env.audit.Entries("tenant-a")
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d", len(entries))
	}
	if entries[0].Action != "currency.convert" || entries[1].PrevHash != entries[0].Hash {
		t.Errorf("audit chain not linked: %+v", entries)
	}
	if i := VerifyChain(entries); i != -1 {
		t.Errorf("chain broken at %d", i)
	}
}

func TestConvert_ErrorMapping(t *testing.T) {
	down := fx.ProviderFunc(func(context.Context, string) (map[string]decimal.Decimal, error) {
		return nil, errors.New("connection refused")
	})
	cases := []struct {
		name      string
		provider  fx.RateProvider
		body      string
		status    int
		code      string
		retryable bool
	}{
		{"missing fields", nil, `{"from":"USD"}`, http.StatusBadRequest, "INVALID_INPUT", false},
		{"negative amount", nil, `{"amount":-1,"from":"USD","to":"EUR"}`, http.StatusBadRequest, "INVALID_INPUT", false},
		{"unknown currency", nil, `{"amount":1,"from":"USD","to":"XXX"}`, http.StatusBadRequest, "INVALID_INPUT", false},
		{"rate not found", nil, `{"amount":1,"from":"USD","to":"JPY"}`, http.StatusNotFound, "RATE_NOT_FOUND", false},
		{"provider down", down, `{"amount":1,"from":"USD","to":"EUR"}`, http.StatusServiceUnavailable, "RATES_UNAVAILABLE", true},
		{"bad json", nil, `{"amount":`, http.StatusBadRequest, "BAD_JSON", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, tc.provider, nil)
			rec := env.do(t, http.MethodPost, "/api/currency/convert", "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			body := decodeError(t, rec)
			if body.Code != tc.code || body.Retryable != tc.retryable {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestRates_DefaultBase(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	rec := env.do(t, http.MethodGet, "/api/currency/rates", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var res fx.RatesResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Base != "USD" || !res.Rates["GBP"].Equal(d("0.79")) {
		t.Errorf("rates = %+v", res)
	}
}

func TestToInvoice(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	q := sampleQuote()
	rec := env.do(t, http.MethodPost, "/api/quotes/to-invoice", "tenant-b", q)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var inv billing.Invoice
	if err := json.NewDecoder(rec.Body).Decode(&inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.Status != billing.InvoiceDraft || inv.QuoteID == nil || *inv.QuoteID != q.ID {
		t.Errorf("invoice = %+v", inv)
	}
	if !inv.Total.Equal(q.Total) || inv.PaymentTerms != "Net 14" {
		t.Errorf("money or terms not carried: %s %q", inv.Total, inv.PaymentTerms)
	}
	if got := env.audit.Entries("tenant-b"); len(got) != 1 || got[0].Action != "quote.to_invoice" {
		t.Errorf("audit = %+v", got)
	}
}

func TestExport_JSON(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	q := sampleQuote()
	rec := env.do(t, http.MethodPost, "/api/export/quote?format=json", "", map[string]any{"quote": q})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "quote-QUO-7.json") {
		t.Errorf("content disposition = %q", cd)
	}
	doc, err := export.DecodeJSON(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if doc.DocumentNumber != "QUO-7" || doc.Client == nil || doc.Client.Name != "Grace Hopper" {
		t.Errorf("exported doc = %+v", doc)
	}
}

func TestExport_PDFDefaultFormat(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	rec := env.do(t, http.MethodPost, "/api/export/quote", "", map[string]any{"quote": sampleQuote()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("body is not a PDF")
	}
}

func TestExport_Errors(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	noCurrency := sampleQuote()
	noCurrency.Currency = ""
	cases := []struct {
		target string
		body   any
		status int
		code   string
	}{
		{"/api/export/invoice?format=json", map[string]any{"quote": sampleQuote()}, http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"},
		{"/api/export/quote?format=json", map[string]any{"quote": noCurrency}, http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"},
		{"/api/export/receipt", map[string]any{}, http.StatusBadRequest, "INVALID_INPUT"},
		{"/api/export/quote?format=xlsx", map[string]any{}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodPost, tc.target, "", tc.body)
		if rec.Code != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.target, rec.Code, tc.status)
			continue
		}
		if body := decodeError(t, rec); body.Code != tc.code {
			t.Errorf("%s: code = %s", tc.target, body.Code)
		}
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, stubDescriber{out: "Quarterly security audit."})
	rec := env.do(t, http.MethodPost, "/api/ai/generate", "", map[string]string{"prompt": "audit"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var got map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got["description"] != "Quarterly security audit." {
		t.Errorf("description = %q", got["description"])
	}
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		desc   Describer
		status int
		code   string
	}{
		{"no describer", nil, http.StatusServiceUnavailable, "AI_DISABLED"},
		{"disabled", stubDescriber{err: describe.ErrDisabled}, http.StatusServiceUnavailable, "AI_DISABLED"},
		{"all failed", stubDescriber{err: describe.ErrAllProvidersFailed}, http.StatusBadGateway, "AI_UNAVAILABLE"},
		{"empty prompt", stubDescriber{err: describe.ErrInvalidInput}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, nil, tc.desc)
			rec := env.do(t, http.MethodPost, "/api/ai/generate", "", map[string]string{"prompt": "x"})
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if body := decodeError(t, rec); body.Code != tc.code {
				t.Errorf("code = %s", body.Code)
			}
		})
	}
}

func (e testEnv) doFrom(t *testing.T, remoteAddr, tenant string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/totals", strings.NewReader(`{"items":[],"tax_rate":0}`))
	req.RemoteAddr = remoteAddr
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitPerClient(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 1, RateLimitBurst: 1}, nil, nil)
	if rec := env.doFrom(t, "198.51.100.7:4000", "t1", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := env.doFrom(t, "198.51.100.7:4001", "t1", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if ra := rec.Header().Get("Retry-After"); ra != "60" {
		t.Errorf("Retry-After = %q", ra)
	}
	if b := decodeError(t, rec); b.Code != "RATE_LIMITED" || !b.Retryable {
		t.Errorf("body = %+v", b)
	}
	if rec := env.doFrom(t, "203.0.113.9:4000", "t1", nil); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/healthz", "t1", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz should bypass limiter, got %d", rec.Code)
	}
}

func TestRateLimit_TenantHeaderDoesNotResetBudget(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 1, RateLimitBurst: 1}, nil, nil)
	accepted := 0
	for i := 0; i < 50; i++ {
		rec := env.doFrom(t, "198.51.100.7:4000", fmt.Sprintf("tenant-%d", i), nil)
		if rec.Code == http.StatusOK {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted %d of 50 requests with rotating tenant headers, want 1", accepted)
	}
}

func TestRateLimit_ForwardedForIgnoredUnlessTrusted(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 1, RateLimitBurst: 1}, nil, nil)
	env.doFrom(t, "198.51.100.7:4000", "", map[string]string{"X-Forwarded-For": "192.0.2.1"})
	rec := env.doFrom(t, "198.51.100.7:4000", "", map[string]string{"X-Forwarded-For": "192.0.2.2"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("spoofed X-Forwarded-For bypassed the limiter, status = %d", rec.Code)
	}

	trusted := newTestEnv(t, Config{RateLimitPerMinute: 1, RateLimitBurst: 1, TrustProxyHeaders: true}, nil, nil)
	trusted.doFrom(t, "10.0.0.1:4000", "", map[string]string{"X-Forwarded-For": "192.0.2.1"})
	if rec := trusted.doFrom(t, "10.0.0.1:4000", "", map[string]string{"X-Forwarded-For": "192.0.2.2"}); rec.Code != http.StatusOK {
		t.Fatalf("distinct clients behind a trusted proxy share a budget, status = %d", rec.Code)
	}
}

func TestClientLimiter_EvictsIdleBuckets(t *testing.T) {
	l := NewClientLimiter(60, 2)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	if n := len(l.buckets); n != 100 {
		t.Fatalf("buckets = %d, want 100", n)
	}

	now = now.Add(3 * time.Second)
	if ok, _ := l.Allow("10.0.1.1"); !ok {
		t.Fatalf("new client rejected")
	}
	if n := len(l.buckets); n != 1 {
		t.Fatalf("buckets after idle sweep = %d, want 1", n)
	}
}

func TestCorrelationID(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-Id", "corr-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-Id"); got != "corr-123" {
		t.Errorf("echoed corr id = %q", got)
	}

	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	if _, err := uuid.Parse(rec.Header().Get("X-Correlation-Id")); err != nil {
		t.Errorf("generated corr id is not a uuid: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{}, nil, nil)
	env.do(t, http.MethodGet, "/healthz", "", nil)
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `quotla_http_requests_total{method="GET",route="/healthz",status="200"}`) {
		t.Errorf("request counter missing from /metrics output")
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	rec := NewMemoryAuditRecorder()
	ctx := context.Background()
	for _, action := range []string{"a", "b", "c"} {
		if _, err := HashChain(ctx, rec, "t", AuditLog{Action: action, TenantID: "t", Ts: time.Now()}); err != nil {
			t.Fatalf("HashChain: %v", err)
		}
	}
	entries := rec.Entries("t")
	if i := VerifyChain(entries); i != -1 {
		t.Fatalf("intact chain reported broken at %d", i)
	}
	entries[1].Action = "forged"
	if i := VerifyChain(entries); i != 1 {
		t.Errorf("tampered index = %d, want 1", i)
	}
}
