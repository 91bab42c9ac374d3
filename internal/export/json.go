package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/money"
)

// The JSON export is a flat object whose key order is fixed by the struct
// layout below: head, type-specific date, body, type-specific terms.

type jsonHead struct {
	Type           DocType       `json:"type"`
	DocumentNumber string        `json:"document_number"`
	CreatedAt      *time.Time    `json:"created_at"`
	UpdatedAt      *time.Time    `json:"updated_at"`
	Status         string        `json:"status"`
	IssueDate      *billing.Date `json:"issue_date"`
}

type jsonBody struct {
	Title     *string      `json:"title"`
	Client    *JSONClient  `json:"client"`
	Business  JSONBusiness `json:"business"`
	Currency  string       `json:"currency"`
	Items     []jsonItem   `json:"items"`
	Subtotal  json.Number  `json:"subtotal"`
	TaxRate   json.Number  `json:"tax_rate"`
	TaxAmount json.Number  `json:"tax_amount"`
	Total     json.Number  `json:"total"`
	Notes     *string      `json:"notes"`
}

type quoteJSON struct {
	jsonHead
	ValidUntil *billing.Date `json:"valid_until"`
	jsonBody
	Terms *string `json:"terms"`
}

type invoiceJSON struct {
	jsonHead
	DueDate *billing.Date `json:"due_date"`
	jsonBody
	PaymentTerms *string `json:"payment_terms"`
}

type jsonItem struct {
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Amount      json.Number `json:"amount"`
	SortOrder   int         `json:"sort_order"`
}

// JSONClient is the bill-to block of the JSON export.
type JSONClient struct {
	Name        string  `json:"name"`
	CompanyName *string `json:"company_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	PostalCode  *string `json:"postal_code"`
	Country     *string `json:"country"`
}

// JSONBusiness is the issuer block of the JSON export.
type JSONBusiness struct {
	Name            *string `json:"name"`
	BusinessNumber  *string `json:"business_number"`
	TaxID           *string `json:"tax_id"`
	Address         *string `json:"address"`
	City            *string `json:"city"`
	State           *string `json:"state"`
	PostalCode      *string `json:"postal_code"`
	Country         *string `json:"country"`
	Phone           *string `json:"phone"`
	Email           *string `json:"email"`
	Website         *string `json:"website"`
	DefaultCurrency *string `json:"default_currency"`
}

// JSONItem is a decoded line item.
type JSONItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// JSONDocument is the parsed form of a JSON export of either type.
type JSONDocument struct {
	Type           DocType         `json:"type"`
	DocumentNumber string          `json:"document_number"`
	CreatedAt      *time.Time      `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at"`
	Status         string          `json:"status"`
	IssueDate      *billing.Date   `json:"issue_date"`
	ValidUntil     *billing.Date   `json:"valid_until"`
	DueDate        *billing.Date   `json:"due_date"`
	Title          *string         `json:"title"`
	Client         *JSONClient     `json:"client"`
	Business       JSONBusiness    `json:"business"`
	Currency       string          `json:"currency"`
	Items          []JSONItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	Notes          *string         `json:"notes"`
	Terms          *string         `json:"terms"`
	PaymentTerms   *string         `json:"payment_terms"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func optionalDate(d billing.Date) *billing.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

func fixed(d decimal.Decimal) json.Number {
	return json.Number(money.Round2(d).StringFixed(money.Places))
}

func jsonHeadOf(t DocType, doc billing.Document, status string) jsonHead {
	return jsonHead{
		Type:           t,
		DocumentNumber: doc.Number,
		CreatedAt:      optionalTime(doc.CreatedAt),
		UpdatedAt:      optionalTime(doc.UpdatedAt),
		Status:         status,
		IssueDate:      optionalDate(doc.IssueDate),
	}
}

func jsonBodyOf(doc billing.Document, p billing.Profile) jsonBody {
	b := jsonBody{
		Title:     optional(doc.Title),
		Business:  businessJSON(p),
		Currency:  string(doc.Currency),
		Items:     make([]jsonItem, 0, len(doc.Items)),
		Subtotal:  fixed(doc.Subtotal),
		TaxRate:   json.Number(doc.TaxRate.String()),
		TaxAmount: fixed(doc.TaxAmount),
		Total:     fixed(doc.Total),
		Notes:     optional(doc.Notes),
	}
	if doc.Client != nil {
		c := doc.Client
		b.Client = &JSONClient{
			Name:        c.Name,
			CompanyName: optional(c.CompanyName),
			Email:       optional(c.Email),
			Phone:       optional(c.Phone),
			Address:     optional(c.Address),
			City:        optional(c.City),
			State:       optional(c.State),
			PostalCode:  optional(c.PostalCode),
			Country:     optional(c.Country),
		}
	}
	for _, it := range billing.SortedItems(doc.Items) {
		b.Items = append(b.Items, jsonItem{
			Description: it.Description,
			Quantity:    json.Number(it.Quantity.String()),
			UnitPrice:   fixed(it.UnitPrice),
			Amount:      fixed(it.Amount),
			SortOrder:   it.SortOrder,
		})
	}
	return b
}

func businessJSON(p billing.Profile) JSONBusiness {
	return JSONBusiness{
		Name:            optional(p.CompanyName),
		BusinessNumber:  optional(p.BusinessNumber),
		TaxID:           optional(p.TaxID),
		Address:         optional(p.Address),
		City:            optional(p.City),
		State:           optional(p.State),
		PostalCode:      optional(p.PostalCode),
		Country:         optional(p.Country),
		Phone:           optional(p.Phone),
		Email:           optional(p.Email),
		Website:         optional(p.Website),
		DefaultCurrency: optional(string(p.DefaultCurrency)),
	}
}

func encodeJSON(req Request) ([]byte, error) {
	var v any
	if req.Type == TypeQuote {
		q := req.Quote
		v = quoteJSON{
			jsonHead:   jsonHeadOf(TypeQuote, q.Document, string(q.Status)),
			ValidUntil: q.ValidUntil,
			jsonBody:   jsonBodyOf(q.Document, req.Profile),
			Terms:      optional(q.Terms),
		}
	} else {
		inv := req.Invoice
		v = invoiceJSON{
			jsonHead:     jsonHeadOf(TypeInvoice, inv.Document, string(inv.Status)),
			DueDate:      inv.DueDate,
			jsonBody:     jsonBodyOf(inv.Document, req.Profile),
			PaymentTerms: optional(inv.PaymentTerms),
		}
	}
	return json.MarshalIndent(v, "", "  ")
}

// DecodeJSON parses a JSON export. Unknown keys are rejected; a missing
// number, currency or items array is ErrMalformedDocument.
func DecodeJSON(data []byte) (JSONDocument, error) {
	var doc JSONDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return JSONDocument{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := ParseDocType(string(doc.Type)); err != nil {
		return JSONDocument{}, fmt.Errorf("%w: unknown type %q", ErrMalformedDocument, doc.Type)
	}
	if doc.DocumentNumber == "" {
		return JSONDocument{}, fmt.Errorf("%w: document number is missing", ErrMalformedDocument)
	}
	if doc.Currency == "" {
		return JSONDocument{}, fmt.Errorf("%w: currency is missing", ErrMalformedDocument)
	}
	if doc.Items == nil {
		return JSONDocument{}, fmt.Errorf("%w: items are missing", ErrMalformedDocument)
	}
	return doc, nil
}

func (d JSONDocument) document() (billing.Document, error) {
	cur, err := money.ParseCurrency(d.Currency)
	if err != nil {
		return billing.Document{}, err
	}
	doc := billing.Document{
		Number:    d.DocumentNumber,
		Title:     deref(d.Title),
		Currency:  cur,
		Subtotal:  d.Subtotal,
		TaxRate:   d.TaxRate,
		TaxAmount: d.TaxAmount,
		Total:     d.Total,
		Notes:     deref(d.Notes),
		Items:     make([]billing.LineItem, 0, len(d.Items)),
	}
	if d.CreatedAt != nil {
		doc.CreatedAt = *d.CreatedAt
	}
	if d.UpdatedAt != nil {
		doc.UpdatedAt = *d.UpdatedAt
	}
	if d.IssueDate != nil {
		doc.IssueDate = *d.IssueDate
	}
	if c := d.Client; c != nil {
		doc.Client = &billing.Client{
			Name:        c.Name,
			CompanyName: deref(c.CompanyName),
			Email:       deref(c.Email),
			Phone:       deref(c.Phone),
			Address:     deref(c.Address),
			City:        deref(c.City),
			State:       deref(c.State),
			PostalCode:  deref(c.PostalCode),
			Country:     deref(c.Country),
		}
	}
	for _, it := range d.Items {
		doc.Items = append(doc.Items, billing.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
			SortOrder:   it.SortOrder,
		})
	}
	return doc, nil
}

// Quote rebuilds the quote carried by a quote export.
func (d JSONDocument) Quote() (billing.Quote, error) {
	if d.Type != TypeQuote {
		return billing.Quote{}, fmt.Errorf("%w: document is a %s, not a quote", ErrMalformedDocument, d.Type)
	}
	doc, err := d.document()
	if err != nil {
		return billing.Quote{}, err
	}
	status, err := billing.ParseQuoteStatus(d.Status)
	if err != nil {
		return billing.Quote{}, err
	}
	return billing.Quote{Document: doc, Status: status, ValidUntil: d.ValidUntil, Terms: deref(d.Terms)}, nil
}

// Invoice rebuilds the invoice carried by an invoice export.
func (d JSONDocument) Invoice() (billing.Invoice, error) {
	if d.Type != TypeInvoice {
		return billing.Invoice{}, fmt.Errorf("%w: document is a %s, not an invoice", ErrMalformedDocument, d.Type)
	}
	doc, err := d.document()
	if err != nil {
		return billing.Invoice{}, err
	}
	status, err := billing.ParseInvoiceStatus(d.Status)
	if err != nil {
		return billing.Invoice{}, err
	}
	return billing.Invoice{Document: doc, Status: status, DueDate: d.DueDate, PaymentTerms: deref(d.PaymentTerms)}, nil
}

// Profile rebuilds the issuing business.
func (d JSONDocument) Profile() billing.Profile {
	b := d.Business
	return billing.Profile{
		CompanyName:     deref(b.Name),
		BusinessNumber:  deref(b.BusinessNumber),
		TaxID:           deref(b.TaxID),
		Address:         deref(b.Address),
		City:            deref(b.City),
		State:           deref(b.State),
		PostalCode:      deref(b.PostalCode),
		Country:         deref(b.Country),
		Phone:           deref(b.Phone),
		Email:           deref(b.Email),
		Website:         deref(b.Website),
		DefaultCurrency: money.Currency(deref(b.DefaultCurrency)),
	}
}
