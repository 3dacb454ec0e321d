// Package coerce turns loosely formatted monetary cells into decimals.
//
// Booking exports mix numeric cells with text such as "$1,234 " or "".
// Value never fails: anything it cannot read counts as zero. ParseStrict
// exposes the same rules with an error so callers can count bad cells.
package coerce

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var stripper = strings.NewReplacer("$", "", ",", "", " ", "")

// Value converts raw to a decimal, returning zero for anything unparsable.
func Value(raw interface{}) decimal.Decimal {
	d, err := ParseStrict(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseStrict converts raw to a decimal. Empty text is zero; nil and
// unsupported types are errors.
func ParseStrict(raw interface{}) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("value is missing")
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, fmt.Errorf("value is missing")
		}
		return *v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("value %v is not a finite number", v)
		}
		return decimal.NewFromFloat(v), nil
	case float32:
		return ParseStrict(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return fromUint64(uint64(v)), nil
	case uint32:
		return fromUint64(uint64(v)), nil
	case uint64:
		return fromUint64(v), nil
	case string:
		return parseText(v)
	case []byte:
		return parseText(string(v))
	case fmt.Stringer:
		return parseText(v.String())
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", raw)
	}
}

func parseText(s string) (decimal.Decimal, error) {
	cleaned := stripper.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		cleaned = "0"
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// Sum coerces and adds every value.
func Sum(values []interface{}) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(Value(v))
	}
	return total
}
