package outreach

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VariableKind controls type-specific formatting during rendering.
type VariableKind int

const (
	KindText VariableKind = iota
	KindCurrency
	KindDate
)

// VariableSpec describes one known personalization variable.
type VariableSpec struct {
	Kind     VariableKind
	Fallback string
}

// knownVariables is the registry of personalization variables a template may
// reference. Campaign validation flags anything outside this set.
var knownVariables = map[string]VariableSpec{
	"first_name":     {Kind: KindText, Fallback: "there"},
	"customer_name":  {Kind: KindText, Fallback: "there"},
	"company_name":   {Kind: KindText, Fallback: "your team"},
	"order_number":   {Kind: KindText, Fallback: "your order"},
	"quote_number":   {Kind: KindText, Fallback: "your quote"},
	"invoice_number": {Kind: KindText, Fallback: "your invoice"},
	"order_total":    {Kind: KindCurrency, Fallback: "the order total"},
	"quote_total":    {Kind: KindCurrency, Fallback: "the quoted amount"},
	"amount_due":     {Kind: KindCurrency, Fallback: "the outstanding amount"},
	"order_date":     {Kind: KindDate, Fallback: "recently"},
	"invoice_date":   {Kind: KindDate, Fallback: "recently"},
	"due_date":       {Kind: KindDate, Fallback: "soon"},
	"last_product":   {Kind: KindText, Fallback: "your recent purchase"},
	"reminder_count": {Kind: KindText, Fallback: ""},
}

// IsKnownVariable reports whether name is in the registry.
func IsKnownVariable(name string) bool {
	_, ok := knownVariables[name]
	return ok
}

// KnownVariables returns the registered variable names in map order.
func KnownVariables() []string {
	names := make([]string, 0, len(knownVariables))
	for name := range knownVariables {
		names = append(names, name)
	}
	return names
}

// formatValue applies type-specific formatting to a raw personalization value.
// Currency values are parsed as floats and rendered as dollars; date values
// accept ISO dates or RFC3339 timestamps and render in day-month-year style.
// Unparseable values pass through untouched.
func formatValue(spec VariableSpec, raw string) string {
	switch spec.Kind {
	case KindCurrency:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return raw
		}
		return fmt.Sprintf("$%.2f", f)
	case KindDate:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t.Format("2 January 2006")
			}
		}
		return raw
	default:
		return raw
	}
}
