package money

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 code from the supported catalog.
type Currency string

type currencyInfo struct {
	Symbol string
	Name   string
}

var catalog = map[Currency]currencyInfo{
	"USD": {"$", "US Dollar"},
	"EUR": {"€", "Euro"},
	"GBP": {"£", "British Pound"},
	"CAD": {"C$", "Canadian Dollar"},
	"AUD": {"A$", "Australian Dollar"},
	"JPY": {"¥", "Japanese Yen"},
	"CNY": {"¥", "Chinese Yuan"},
	"INR": {"₹", "Indian Rupee"},
	"ZAR": {"R", "South African Rand"},
	"NGN": {"₦", "Nigerian Naira"},
	"KES": {"KSh", "Kenyan Shilling"},
	"GHS": {"GH₵", "Ghanaian Cedi"},
	"EGP": {"E£", "Egyptian Pound"},
	"MAD": {"MAD", "Moroccan Dirham"},
	"TZS": {"TSh", "Tanzanian Shilling"},
	"UGX": {"USh", "Ugandan Shilling"},
	"RWF": {"FRw", "Rwandan Franc"},
	"XOF": {"CFA", "West African CFA Franc"},
	"XAF": {"FCFA", "Central African CFA Franc"},
	"BWP": {"P", "Botswana Pula"},
}

// ParseCurrency normalises the code and checks it against the catalog.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if c == "" {
		return "", fmt.Errorf("%w: currency code is required", ErrInvalidInput)
	}
	if _, ok := catalog[c]; !ok {
		return "", fmt.Errorf("%w: unsupported currency %q", ErrInvalidInput, code)
	}
	return c, nil
}

// Supported lists every catalog code in alphabetical order.
func Supported() []Currency {
	out := make([]Currency, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Symbol returns the display symbol, falling back to the code itself.
func (c Currency) Symbol() string {
	if info, ok := catalog[c]; ok {
		return info.Symbol
	}
	return string(c)
}

// Name returns the human-readable currency name.
func (c Currency) Name() string {
	return catalog[c].Name
}

// Valid reports whether c is in the catalog.
func (c Currency) Valid() bool {
	_, ok := catalog[c]
	return ok
}

// UnmarshalText rejects codes outside the catalog. An empty code decodes to
// the zero Currency so callers can report it as missing.
func (c *Currency) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*c = ""
		return nil
	}
	parsed, err := ParseCurrency(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Format renders amount with the currency symbol and exactly two decimals.
func Format(amount decimal.Decimal, c Currency) string {
	return c.Symbol() + Round2(amount).StringFixed(Places)
}
