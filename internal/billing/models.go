package billing

import (
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/money"
)

// Date is a calendar date serialised as YYYY-MM-DD.
type Date = openapi_types.Date

// LineItem is one row of a quote or invoice.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// Client is the "bill to" party.
type Client struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	PostalCode  string    `json:"postal_code,omitempty"`
	Country     string    `json:"country,omitempty"`
}

// Profile is the issuing business.
type Profile struct {
	CompanyName     string         `json:"company_name,omitempty"`
	BusinessNumber  string         `json:"business_number,omitempty"`
	TaxID           string         `json:"tax_id,omitempty"`
	Address         string         `json:"address,omitempty"`
	City            string         `json:"city,omitempty"`
	State           string         `json:"state,omitempty"`
	PostalCode      string         `json:"postal_code,omitempty"`
	Country         string         `json:"country,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Email           string         `json:"email,omitempty"`
	Website         string         `json:"website,omitempty"`
	DefaultCurrency money.Currency `json:"default_currency,omitempty"`
}

// Document is the monetary shape shared by quotes and invoices. A nil Items
// slice means the items were never loaded, which exporters treat as malformed;
// an empty slice is a document with no rows.
type Document struct {
	ID        uuid.UUID       `json:"id"`
	Number    string          `json:"number"`
	ClientID  *uuid.UUID      `json:"client_id,omitempty"`
	Client    *Client         `json:"client,omitempty"`
	Title     string          `json:"title,omitempty"`
	IssueDate Date            `json:"issue_date"`
	Currency  money.Currency  `json:"currency"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
	Notes     string          `json:"notes,omitempty"`
	Items     []LineItem      `json:"items"`
	CreatedAt time.Time       `json:"created_at,omitzero"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"`
}

// Quote is a priced offer sent to a client.
type Quote struct {
	Document
	Status     QuoteStatus `json:"status"`
	ValidUntil *Date       `json:"valid_until,omitempty"`
	Terms      string      `json:"terms,omitempty"`
}

// Invoice is a request for payment, optionally created from a quote.
type Invoice struct {
	Document
	QuoteID      *uuid.UUID    `json:"quote_id,omitempty"`
	Status       InvoiceStatus `json:"status"`
	DueDate      *Date         `json:"due_date,omitempty"`
	PaymentTerms string        `json:"payment_terms,omitempty"`
}

// Totals returns the stored totals triple.
func (d Document) Totals() money.Totals {
	return money.Totals{Subtotal: d.Subtotal, TaxAmount: d.TaxAmount, Total: d.Total}
}

// ClientName returns the bill-to name or "" when no client is attached.
func (d Document) ClientName() string {
	if d.Client == nil {
		return ""
	}
	return d.Client.Name
}
