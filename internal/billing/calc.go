// Package billing models quotes and invoices and the transformations applied
// to them. Every function returns new values; inputs are never mutated.
package billing

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quotla/quotla-api/internal/money"
)

// ErrInvalidInput is shared with the money package so callers only need one
// sentinel for rejected numeric or enumerated input.
var ErrInvalidInput = money.ErrInvalidInput

// NewLineItem builds an item with a freshly computed amount.
func NewLineItem(description string, quantity, unitPrice decimal.Decimal, sortOrder int) (LineItem, error) {
	amount, err := money.LineAmount(quantity, unitPrice)
	if err != nil {
		return LineItem{}, err
	}
	return LineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      amount,
		SortOrder:   sortOrder,
	}, nil
}

// ComputeTotals derives subtotal, tax and total from items, recomputing each
// amount from quantity and unit price.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) (money.Totals, error) {
	lines := make([]money.Line, len(items))
	for i, it := range items {
		lines[i] = money.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return money.ComputeTotals(lines, taxRate)
}

// RecalculateItems returns a copy of items with every amount recomputed.
func RecalculateItems(items []LineItem) ([]LineItem, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		amount, err := money.LineAmount(it.Quantity, it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		it.Amount = amount
		out[i] = it
	}
	return out, nil
}

// Recalculate returns a copy of doc whose item amounts and totals satisfy the
// rounding invariants.
func Recalculate(doc Document) (Document, error) {
	items, err := RecalculateItems(doc.Items)
	if err != nil {
		return Document{}, err
	}
	totals, err := ComputeTotals(items, doc.TaxRate)
	if err != nil {
		return Document{}, err
	}
	doc.Items = items
	doc.Subtotal = totals.Subtotal
	doc.TaxAmount = totals.TaxAmount
	doc.Total = totals.Total
	return doc, nil
}

// SortedItems returns a copy of items ordered by SortOrder. Equal sort orders
// keep their original relative position.
func SortedItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// Reprice applies a currency conversion to a document: every unit price is
// scaled by newTotal/oldTotal, amounts and totals are then recomputed under
// the usual invariants. The result's total may differ from newTotal by a few
// cents of rounding residue; that is accepted, not corrected.
func Reprice(doc Document, currency money.Currency, newTotal decimal.Decimal) (Document, error) {
	if !currency.Valid() {
		return Document{}, fmt.Errorf("%w: unsupported currency %q", ErrInvalidInput, currency)
	}
	ratio, err := money.Ratio(doc.Total, newTotal)
	if err != nil {
		return Document{}, err
	}
	items := make([]LineItem, len(doc.Items))
	for i, it := range doc.Items {
		it.UnitPrice = money.Scale(it.UnitPrice, ratio)
		items[i] = it
	}
	doc.Items = items
	doc.Currency = currency
	return Recalculate(doc)
}
