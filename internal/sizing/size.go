// Package sizing buckets booking totals into t-shirt sizes for display.
package sizing

import (
	"github.com/shopspring/decimal"

	"booking-rollup-analyzer/internal/coerce"
)

// Size is a fixed magnitude bucket
type Size string

const (
	SizeXS Size = "XS"
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// threshold is the inclusive upper bound of a bucket in USD
type threshold struct {
	max  decimal.Decimal
	size Size
}

var thresholds = []threshold{
	{decimal.NewFromInt(2_000_000), SizeXS},
	{decimal.NewFromInt(10_000_000), SizeS},
	{decimal.NewFromInt(25_000_000), SizeM},
	{decimal.NewFromInt(100_000_000), SizeL},
}

// Classify returns the size bucket of amount. Negative amounts are XS.
func Classify(amount decimal.Decimal) Size {
	for _, t := range thresholds {
		if amount.LessThanOrEqual(t.max) {
			return t.size
		}
	}
	return SizeXL
}

// UpperBound returns the inclusive upper bound of a size. XL has none.
func UpperBound(size Size) (decimal.Decimal, bool) {
	for _, t := range thresholds {
		if t.size == size {
			return t.max, true
		}
	}
	return decimal.Zero, false
}

// ClassifyValue classifies a raw cell; anything unparsable is XS.
func ClassifyValue(raw interface{}) Size {
	d, err := coerce.ParseStrict(raw)
	if err != nil {
		return SizeXS
	}
	return Classify(d)
}

// String returns the label of the size
func (s Size) String() string {
	return string(s)
}

// Color returns the legend color used when rendering the size
func (s Size) Color() string {
	switch s {
	case SizeXS:
		return "gray"
	case SizeS:
		return "blue"
	case SizeM:
		return "green"
	case SizeL:
		return "orange"
	case SizeXL:
		return "red"
	default:
		return "gray"
	}
}

// HexColor returns the legend color as an RGB hex string for spreadsheets
func (s Size) HexColor() string {
	switch s {
	case SizeS:
		return "#4E79A7"
	case SizeM:
		return "#59A14F"
	case SizeL:
		return "#F28E2B"
	case SizeXL:
		return "#E15759"
	default:
		return "#BAB0AC"
	}
}

// All returns the sizes from smallest to largest
func All() []Size {
	return []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL}
}
