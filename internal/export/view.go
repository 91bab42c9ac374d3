package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/money"
)

const (
	defaultFooter       = "Generated with Quotla"
	defaultCompanyName  = "Your Company"
	noClientPlaceholder = "No client assigned"
	dateLayout          = "Jan 02, 2006"
)

type rgb struct{ R, G, B int }

var defaultBrand = rgb{79, 70, 229}

func (c rgb) Hex() string { return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B) }

func parseHexColor(s string) (rgb, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return rgb{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}, fmt.Errorf("color %q: %w", s, err)
	}
	return rgb{int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)}, nil
}

type party struct {
	Name  string
	Lines []string
}

type itemRow struct {
	Description string
	Quantity    string
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// view is the logical content shared by the PDF and Word layouts, in
// reading order.
type view struct {
	Heading    string
	Number     string
	Business   party
	BillTo     *party
	IssueDate  string
	DateLabel  string
	Date       string
	Status     string
	Title      string
	Items      []itemRow
	Subtotal   decimal.Decimal
	TaxLabel   string
	Tax        decimal.Decimal
	Total      decimal.Decimal
	Notes      string
	TermsLabel string
	Terms      string
	Footer     string
	Brand      rgb
	Currency   money.Currency

	symbol string
}

// Money formats an amount with the view's currency symbol and two decimals.
func (v *view) Money(d decimal.Decimal) string {
	return v.symbol + money.Round2(d).StringFixed(money.Places)
}

// NoClient is the bill-to placeholder.
func (v *view) NoClient() string { return noClientPlaceholder }

func (e *Exporter) buildView(req Request) *view {
	v := &view{Footer: e.cfg.Footer, Brand: e.brand}
	var doc billing.Document
	if req.Type == TypeQuote {
		q := req.Quote
		doc = q.Document
		v.Heading = "QUOTE"
		v.DateLabel = "Valid Until"
		if q.ValidUntil != nil {
			v.Date = q.ValidUntil.Format(dateLayout)
		}
		v.Status = strings.ToUpper(string(q.Status))
		v.TermsLabel = "Terms & Conditions"
		v.Terms = q.Terms
	} else {
		inv := req.Invoice
		doc = inv.Document
		v.Heading = "INVOICE"
		v.DateLabel = "Due Date"
		if inv.DueDate != nil {
			v.Date = inv.DueDate.Format(dateLayout)
		}
		v.Status = strings.ToUpper(string(inv.Status))
		v.TermsLabel = "Payment Terms"
		v.Terms = inv.PaymentTerms
	}

	v.Number = doc.Number
	v.Currency = doc.Currency
	v.symbol = doc.Currency.Symbol()
	v.Business = businessParty(req.Profile)
	if doc.Client != nil {
		c := clientParty(*doc.Client)
		v.BillTo = &c
	}
	if !doc.IssueDate.IsZero() {
		v.IssueDate = doc.IssueDate.Format(dateLayout)
	}
	v.Title = doc.Title
	for _, it := range billing.SortedItems(doc.Items) {
		v.Items = append(v.Items, itemRow{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		})
	}
	v.Subtotal = doc.Subtotal
	v.TaxLabel = fmt.Sprintf("Tax (%s%%)", doc.TaxRate.String())
	v.Tax = doc.TaxAmount
	v.Total = doc.Total
	v.Notes = doc.Notes
	return v
}

func businessParty(p billing.Profile) party {
	name := p.CompanyName
	if strings.TrimSpace(name) == "" {
		name = defaultCompanyName
	}
	out := party{Name: name}
	out.Lines = appendNonEmpty(out.Lines,
		p.Address,
		cityLine(p.City, p.State, p.PostalCode),
		p.Country,
		prefixed("Phone: ", p.Phone),
		p.Email,
		p.Website,
		prefixed("Tax ID: ", p.TaxID),
		prefixed("Business No: ", p.BusinessNumber),
	)
	return out
}

func clientParty(c billing.Client) party {
	out := party{Name: c.Name}
	out.Lines = appendNonEmpty(out.Lines,
		c.CompanyName,
		c.Email,
		c.Phone,
		c.Address,
		cityLine(c.City, c.State, c.PostalCode),
		c.Country,
	)
	return out
}

func cityLine(city, state, postal string) string {
	return strings.Join(strings.Fields(city+" "+state+" "+postal), " ")
}

func prefixed(prefix, v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return prefix + v
}

func appendNonEmpty(dst []string, vals ...string) []string {
	for _, s := range vals {
		if s = strings.TrimSpace(s); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}
