package billing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator issues user-facing invoice numbers.
type NumberGenerator interface {
	NextInvoiceNumber() string
}

// NumberGeneratorFunc adapts a function to NumberGenerator.
type NumberGeneratorFunc func() string

func (f NumberGeneratorFunc) NextInvoiceNumber() string { return f() }

// TimestampNumbers produces INV-<unix millis>-<hex>; the random suffix keeps
// two conversions in the same millisecond apart.
type TimestampNumbers struct {
	Now func() time.Time
}

func (g TimestampNumbers) NextInvoiceNumber() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	var suffix [3]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("INV-%d-%s", now().UnixMilli(), hex.EncodeToString(suffix[:]))
}

// TransformOptions tunes ToInvoice. Zero values use TimestampNumbers and
// time.Now.
type TransformOptions struct {
	Numbers NumberGenerator
	Now     func() time.Time
}

// ToInvoice builds a new draft invoice from a quote. Monetary values are copied
// as-is; they are facts about the quote at conversion time. Each call produces
// an independent invoice with its own identity and number, so converting the
// same quote twice yields two invoices.
func ToInvoice(q Quote, opts TransformOptions) (Invoice, error) {
	numbers := opts.Numbers
	if numbers == nil {
		numbers = TimestampNumbers{Now: opts.Now}
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	number := numbers.NextInvoiceNumber()
	if number == "" {
		return Invoice{}, fmt.Errorf("%w: generated invoice number is empty", ErrInvalidInput)
	}
	if number == q.Number {
		return Invoice{}, fmt.Errorf("%w: invoice number %q collides with quote number", ErrInvalidInput, number)
	}

	var items []LineItem
	if q.Items != nil {
		items = make([]LineItem, 0, len(q.Items))
		for _, it := range SortedItems(q.Items) {
			items = append(items, LineItem{
				ID:          uuid.New(),
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Amount:      it.Amount,
				SortOrder:   it.SortOrder,
			})
		}
	}

	ts := now().UTC()
	quoteID := q.ID
	inv := Invoice{
		Document: Document{
			ID:        uuid.New(),
			Number:    number,
			ClientID:  copyUUID(q.ClientID),
			Client:    copyClient(q.Client),
			Title:     q.Title,
			IssueDate: Date{Time: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)},
			Currency:  q.Currency,
			Subtotal:  q.Subtotal,
			TaxRate:   q.TaxRate,
			TaxAmount: q.TaxAmount,
			Total:     q.Total,
			Notes:     q.Notes,
			Items:     items,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		QuoteID:      &quoteID,
		Status:       InvoiceDraft,
		PaymentTerms: q.Terms,
	}
	return inv, nil
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyClient(c *Client) *Client {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
