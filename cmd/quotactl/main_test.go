package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/export"
)

const invoiceJSON = `{
  "id": "8f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f",
  "quote_id": "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f",
  "number": "INV-7",
  "issue_date": "2026-10-02",
  "currency": "USD",
  "subtotal": "0",
  "tax_rate": "10",
  "tax_amount": "0",
  "total": "0",
  "status": "sent",
  "due_date": "2026-11-01",
  "payment_terms": "Due on receipt",
  "items": [
    {"id": "9f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", "description": "Audit", "quantity": "2", "unit_price": "50", "amount": "0", "sort_order": 1}
  ]
}`

const quoteJSON = `{
  "id": "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f",
  "number": "QUO-42",
  "issue_date": "2026-10-01",
  "currency": "USD",
  "subtotal": "0",
  "tax_rate": "8.25",
  "tax_amount": "0",
  "total": "0",
  "status": "approved",
  "valid_until": "2026-10-31",
  "terms": "Net 30",
  "items": [
    {"id": "7f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", "description": "Consulting", "quantity": "3", "unit_price": "125.50", "amount": "0", "sort_order": 1}
  ]
}`

func run(t *testing.T, args ...string) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	a := &app{stdout: &out}
	require.NoError(t, a.cli().Run(append([]string{"quotactl"}, args...)))
	return &out
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestTotalsCommand(t *testing.T) {
	out := run(t, "totals", "--in", writeInput(t, quoteJSON))

	var q billing.Quote
	require.NoError(t, json.Unmarshal(out.Bytes(), &q))
	assert.Equal(t, "376.50", q.Subtotal.StringFixed(2))
	// 376.50 * 8.25% = 31.06125
	assert.Equal(t, "31.06", q.TaxAmount.StringFixed(2))
	assert.Equal(t, "407.56", q.Total.StringFixed(2))

	assert.Equal(t, billing.QuoteApproved, q.Status)
	assert.Equal(t, "Net 30", q.Terms)
	require.NotNil(t, q.ValidUntil)
	assert.Equal(t, "2026-10-31", q.ValidUntil.Format("2006-01-02"))
}

func TestTotalsCommand_KeepsInvoiceFields(t *testing.T) {
	out := run(t, "totals", "--type", "invoice", "--in", writeInput(t, invoiceJSON))

	var inv billing.Invoice
	require.NoError(t, json.Unmarshal(out.Bytes(), &inv))
	assert.Equal(t, "110.00", inv.Total.StringFixed(2))
	assert.Equal(t, billing.InvoiceSent, inv.Status)
	assert.Equal(t, "Due on receipt", inv.PaymentTerms)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, "2026-11-01", inv.DueDate.Format("2006-01-02"))
	require.NotNil(t, inv.QuoteID)
	assert.Equal(t, "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", inv.QuoteID.String())
}

func TestTotalsCommand_RejectsUnknownType(t *testing.T) {
	a := &app{stdout: &bytes.Buffer{}}
	err := a.cli().Run([]string{"quotactl", "totals", "--type", "receipt", "--in", writeInput(t, quoteJSON)})
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestToInvoiceCommand(t *testing.T) {
	out := run(t, "to-invoice", "--in", writeInput(t, quoteJSON))

	var inv billing.Invoice
	require.NoError(t, json.Unmarshal(out.Bytes(), &inv))
	assert.Equal(t, billing.InvoiceDraft, inv.Status)
	assert.Equal(t, "Net 30", inv.PaymentTerms)
	require.NotNil(t, inv.QuoteID)
	assert.Equal(t, "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", inv.QuoteID.String())
}

func TestExportCommand_JSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "quote.json")
	run(t, "export", "--in", writeInput(t, quoteJSON), "--format", "json", "--out", dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	doc, err := export.DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "QUO-42", doc.DocumentNumber)
	assert.Nil(t, doc.Client)
}

func TestExportCommand_RejectsUnknownFormat(t *testing.T) {
	a := &app{stdout: &bytes.Buffer{}}
	err := a.cli().Run([]string{"quotactl", "export", "--in", writeInput(t, quoteJSON), "--format", "odt"})
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
}
