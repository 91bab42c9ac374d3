// Package money holds the pure arithmetic behind quotes and invoices: line
// amounts, subtotal/tax/total and the currency catalog used to render them.
//
// Every derived value is rounded half away from zero to two decimal places at
// the point it is derived, so a reader adding up the printed line items gets
// exactly the printed subtotal.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks malformed numeric or enumerated input. It is returned
// before any I/O happens.
var ErrInvalidInput = errors.New("invalid input")

// Places is the number of decimal places kept for every monetary value.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Totals is the derived subtotal/tax/total triple of a document.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Line is the pricing input of a single line item.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FromFloat converts a float coming from an untyped source (JSON, CLI flags)
// into a decimal, rejecting NaN and infinities.
func FromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not a finite number", ErrInvalidInput, v)
	}
	return decimal.NewFromFloat(v), nil
}

// LineAmount returns round(quantity * unitPrice, 2).
func LineAmount(quantity, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: quantity %s must not be negative", ErrInvalidInput, quantity)
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: unit price %s must not be negative", ErrInvalidInput, unitPrice)
	}
	return Round2(quantity.Mul(unitPrice)), nil
}

// ValidateTaxRate checks the percentage is within [0, 100].
func ValidateTaxRate(taxRate decimal.Decimal) error {
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return fmt.Errorf("%w: tax rate %s out of range [0,100]", ErrInvalidInput, taxRate)
	}
	return nil
}

// ComputeTotals recomputes every line amount and derives the totals from them.
// Stored amounts are never trusted; only quantity and unit price are read.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) (Totals, error) {
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}
	sum := decimal.Zero
	for i, l := range lines {
		amount, err := LineAmount(l.Quantity, l.UnitPrice)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		sum = sum.Add(amount)
	}
	return TotalsFromSubtotal(Round2(sum), taxRate)
}

// TotalsFromSubtotal derives tax and total from an already rounded subtotal.
func TotalsFromSubtotal(subtotal, taxRate decimal.Decimal) (Totals, error) {
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}
	if subtotal.IsNegative() {
		return Totals{}, fmt.Errorf("%w: subtotal %s must not be negative", ErrInvalidInput, subtotal)
	}
	subtotal = Round2(subtotal)
	tax := Round2(subtotal.Mul(taxRate).Div(hundred))
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     Round2(subtotal.Add(tax)),
	}, nil
}

// Ratio returns newTotal/oldTotal, the factor used to re-price line items after
// a currency conversion.
func Ratio(oldTotal, newTotal decimal.Decimal) (decimal.Decimal, error) {
	if !oldTotal.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: cannot derive a ratio from total %s", ErrInvalidInput, oldTotal)
	}
	if newTotal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: converted total %s must not be negative", ErrInvalidInput, newTotal)
	}
	return newTotal.Div(oldTotal), nil
}

// Scale multiplies v by ratio and re-rounds. Scaled values may not add up to
// the externally supplied target exactly; that residue is accepted.
func Scale(v, ratio decimal.Decimal) decimal.Decimal {
	return Round2(v.Mul(ratio))
}
