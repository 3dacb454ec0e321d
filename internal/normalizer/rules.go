package normalizer

import (
	"fmt"
	"strings"

	"booking-rollup-analyzer/internal/models"
)

// Default exact column names of the booking exports
const (
	ColumnFiscalMonthName = "FISCAL_MONTH_NAME"
	ColumnFiscalMonth     = "FiscalMonth"
	ColumnDate            = "Date"
	ColumnArchitecture    = "Architecture"
	ColumnACVValue        = "Sum of ACV_BOOKINGS_AMT_USD"
	ColumnTCVValue        = "Sum of Bookings"
)

// Rule decides whether a header serves a field
type Rule struct {
	Name  string
	Match func(header string) bool
}

// Exact matches a header equal to name after trimming
func Exact(name string) Rule {
	return Rule{
		Name: fmt.Sprintf("exact:%s", name),
		Match: func(header string) bool {
			return strings.TrimSpace(header) == name
		},
	}
}

// Contains matches a header containing any of the fragments, ignoring case
func Contains(fragments ...string) Rule {
	lowered := make([]string, len(fragments))
	for i, f := range fragments {
		lowered[i] = strings.ToLower(f)
	}
	return Rule{
		Name: fmt.Sprintf("contains:%s", strings.Join(lowered, "|")),
		Match: func(header string) bool {
			h := strings.ToLower(header)
			for _, f := range lowered {
				if strings.Contains(h, f) {
					return true
				}
			}
			return false
		},
	}
}

// RuleSet holds the ordered rules of every field. Earlier rules win.
type RuleSet map[models.Field][]Rule

// fieldOrder is the binding order; a column bound to an earlier field is
// not offered to later ones
var fieldOrder = []models.Field{
	models.FieldFiscalMonth,
	models.FieldDate,
	models.FieldCategory,
	models.FieldValue,
}

// DefaultRules returns the column rules for a dataset whose value column is
// normally named valueColumn
func DefaultRules(valueColumn string) RuleSet {
	return RuleSet{
		models.FieldFiscalMonth: {Exact(ColumnFiscalMonthName), Exact(ColumnFiscalMonth)},
		models.FieldDate:        {Exact(ColumnDate), Contains("date", "datum", "time")},
		models.FieldCategory:    {Exact(ColumnArchitecture), Contains("arch")},
		models.FieldValue:       {Exact(valueColumn), Contains("booking", "amount", "value", "sum")},
	}
}

// Override returns a copy of the set where field is first matched exactly
// against columns, then by the existing rules
func (rs RuleSet) Override(field models.Field, columns ...string) RuleSet {
	out := make(RuleSet, len(rs))
	for f, rules := range rs {
		out[f] = append([]Rule(nil), rules...)
	}
	var prefix []Rule
	for _, c := range columns {
		if strings.TrimSpace(c) != "" {
			prefix = append(prefix, Exact(strings.TrimSpace(c)))
		}
	}
	out[field] = append(prefix, out[field]...)
	return out
}

// Bind resolves every field to at most one header
func (rs RuleSet) Bind(headers []string) map[models.Field]models.ColumnBinding {
	bindings := make(map[models.Field]models.ColumnBinding, len(fieldOrder))
	taken := make(map[int]bool)

	for _, field := range fieldOrder {
		binding := models.ColumnBinding{Field: field}
	rules:
		for _, rule := range rs[field] {
			for i, h := range headers {
				if taken[i] || !rule.Match(h) {
					continue
				}
				binding.Column = h
				binding.Rule = rule.Name
				binding.Found = true
				taken[i] = true
				break rules
			}
		}
		bindings[field] = binding
	}

	return bindings
}
