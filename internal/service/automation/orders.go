package automation

import (
	"context"
	"strings"
	"time"
)

// Order is the slice of ERP order state the engine needs to decide whether an
// automation should exist and how to personalize its reminders.
type Order struct {
	ID            string
	OrderNumber   string
	Status        string
	PaymentTerms  string
	CustomerEmail string
	CustomerName  string
	Company       string
	OrderDate     time.Time
	InvoiceDate   *time.Time
	InvoiceNumber string
	Total         float64
	AmountPaid    float64
}

// OrderSource supplies recent orders from the ERP. Implementations handle
// pagination internally and return the full window in one call.
type OrderSource interface {
	ListRecentOrders(ctx context.Context) ([]Order, error)
}

var cancelledStatuses = map[string]bool{
	"VOIDED":    true,
	"VOID":      true,
	"CANCELLED": true,
	"CANCELED":  true,
	"DECLINED":  true,
}

var quoteStatuses = map[string]bool{
	"ESTIMATED":  true,
	"ESTIMATING": true,
}

func (o Order) isCancelled() bool {
	return cancelledStatuses[strings.ToUpper(strings.TrimSpace(o.Status))]
}

func (o Order) isQuote() bool {
	return quoteStatuses[strings.ToUpper(strings.TrimSpace(o.Status))]
}

func (o Order) isCOD() bool {
	terms := strings.ToUpper(o.PaymentTerms)
	return strings.Contains(terms, "COD") || strings.Contains(terms, "CASH ON DELIVERY")
}

func (o Order) outstanding() float64 {
	return o.Total - o.AmountPaid
}

// qualifiesForQuote reports whether the order should carry an active quote
// follow-up automation.
func (o Order) qualifiesForQuote() bool {
	return o.isQuote() && !o.isCancelled() && o.CustomerEmail != ""
}

// qualifiesForCOD reports whether the order should carry an active COD
// follow-up automation: invoiced, cash-on-delivery terms, balance outstanding.
func (o Order) qualifiesForCOD() bool {
	return o.isCOD() && !o.isCancelled() && o.InvoiceDate != nil &&
		o.outstanding() > 0 && o.CustomerEmail != ""
}
