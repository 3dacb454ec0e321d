package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		amount   int64
		expected Size
	}{
		{-5_000_000, SizeXS},
		{0, SizeXS},
		{2_000_000, SizeXS},
		{2_000_001, SizeS},
		{10_000_000, SizeS},
		{10_000_001, SizeM},
		{25_000_000, SizeM},
		{25_000_001, SizeL},
		{100_000_000, SizeL},
		{100_000_001, SizeXL},
	}

	for _, tt := range tests {
		t.Run(decimal.NewFromInt(tt.amount).String(), func(t *testing.T) {
			if got := Classify(decimal.NewFromInt(tt.amount)); got != tt.expected {
				t.Errorf("Classify(%d) = %s, want %s", tt.amount, got, tt.expected)
			}
		})
	}
}

func TestClassify_Fractional(t *testing.T) {
	if got := Classify(decimal.RequireFromString("2000000.01")); got != SizeS {
		t.Errorf("expected S just above the XS bound, got %s", got)
	}
}

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected Size
	}{
		{"nil", nil, SizeXS},
		{"text", "not a number", SizeXS},
		{"currency text", "$30,000,000", SizeL},
		{"float", 5e6, SizeS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyValue(tt.raw); got != tt.expected {
				t.Errorf("ClassifyValue(%#v) = %s, want %s", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestSize_Color(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range All() {
		if s.Color() == "" || s.HexColor() == "" {
			t.Errorf("size %s has no color", s)
		}
		seen[s.HexColor()] = true
	}
	if len(seen) != len(All()) {
		t.Errorf("expected distinct colors per size, got %d", len(seen))
	}
}

func TestUpperBound(t *testing.T) {
	bound, ok := UpperBound(SizeM)
	if !ok || !bound.Equal(decimal.NewFromInt(25_000_000)) {
		t.Errorf("UpperBound(M) = %s, %v", bound, ok)
	}
	if _, ok := UpperBound(SizeXL); ok {
		t.Errorf("XL should have no upper bound")
	}
}
