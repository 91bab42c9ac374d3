package billing

import (
	"fmt"
	"strings"
)

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteApproved QuoteStatus = "approved"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

var quoteStatuses = []QuoteStatus{QuoteDraft, QuoteSent, QuoteApproved, QuoteRejected, QuoteExpired}

var invoiceStatuses = []InvoiceStatus{InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled}

func ParseQuoteStatus(s string) (QuoteStatus, error) {
	v := QuoteStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range quoteStatuses {
		if v == st {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown quote status %q", ErrInvalidInput, s)
}

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	v := InvoiceStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range invoiceStatuses {
		if v == st {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInput, s)
}

func (s *QuoteStatus) UnmarshalText(b []byte) error {
	v, err := ParseQuoteStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s *InvoiceStatus) UnmarshalText(b []byte) error {
	v, err := ParseInvoiceStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
