package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodKind distinguishes the two rolling windows of an analysis
type PeriodKind string

const (
	PeriodCurrent   PeriodKind = "current"
	PeriodReference PeriodKind = "reference"
)

// Window is a closed interval of calendar months anchored at fiscal labels
type Window struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartLabel string    `json:"start_label"`
	EndLabel   string    `json:"end_label"`
}

// Contains reports whether t falls within [Start, End]
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// String returns a string representation of the Window
func (w Window) String() string {
	return fmt.Sprintf("%s (%s) - %s (%s)",
		w.StartLabel, w.Start.Format("2006-01"), w.EndLabel, w.End.Format("2006-01"))
}

// AggregationStatus tells "no rows" apart from "could not compute"
type AggregationStatus string

const (
	StatusOK          AggregationStatus = "ok"
	StatusEmpty       AggregationStatus = "empty"
	StatusUnavailable AggregationStatus = "unavailable"
)

// Aggregation holds per-category sums for one window of one dataset
type Aggregation struct {
	Dataset    DatasetKind                `json:"dataset"`
	Period     PeriodKind                 `json:"period"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
	Total      decimal.Decimal            `json:"total"`
	Rows       int                        `json:"rows"`
	Status     AggregationStatus          `json:"status"`
	Reason     string                     `json:"reason,omitempty"`
}

// NewAggregation creates an empty aggregation
func NewAggregation(dataset DatasetKind, period PeriodKind) *Aggregation {
	return &Aggregation{
		Dataset:    dataset,
		Period:     period,
		ByCategory: make(map[string]decimal.Decimal),
		Total:      decimal.Zero,
		Status:     StatusEmpty,
	}
}

// UnavailableAggregation creates an aggregation that could not be computed
func UnavailableAggregation(dataset DatasetKind, period PeriodKind, reason string) *Aggregation {
	agg := NewAggregation(dataset, period)
	agg.Status = StatusUnavailable
	agg.Reason = reason
	return agg
}

// Add accumulates one row
func (a *Aggregation) Add(category string, amount decimal.Decimal) {
	a.ByCategory[category] = a.ByCategory[category].Add(amount)
	a.Total = a.Total.Add(amount)
	a.Rows++
	a.Status = StatusOK
}

// Get returns the sum for a category, the synthetic total for TotalCategory,
// or zero when the category has no rows
func (a *Aggregation) Get(category string) decimal.Decimal {
	if category == TotalCategory {
		return a.Total
	}
	return a.ByCategory[category]
}

// Map returns the category sums plus the synthetic total entry
func (a *Aggregation) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(a.ByCategory)+1)
	for k, v := range a.ByCategory {
		out[k] = v
	}
	if a.Status != StatusUnavailable {
		out[TotalCategory] = a.Total
	}
	return out
}

// Categories returns the category names in sorted order
func (a *Aggregation) Categories() []string {
	names := make([]string, 0, len(a.ByCategory))
	for k := range a.ByCategory {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsAvailable returns true unless the aggregation could not be computed
func (a *Aggregation) IsAvailable() bool {
	return a.Status != StatusUnavailable
}

// PeriodInfo describes the windows of an analysis for display
type PeriodInfo struct {
	CurrentStart         string   `json:"current_start" yaml:"current_start"`
	CurrentEnd           string   `json:"current_end" yaml:"current_end"`
	ReferenceStart       string   `json:"reference_start" yaml:"reference_start"`
	ReferenceEnd         string   `json:"reference_end" yaml:"reference_end"`
	CurrentStartFiscal   string   `json:"current_start_fiscal" yaml:"current_start_fiscal"`
	CurrentEndFiscal     string   `json:"current_end_fiscal" yaml:"current_end_fiscal"`
	ReferenceStartFiscal string   `json:"reference_start_fiscal" yaml:"reference_start_fiscal"`
	ReferenceEndFiscal   string   `json:"reference_end_fiscal" yaml:"reference_end_fiscal"`
	SelectedCategories   []string `json:"selected_categories,omitempty" yaml:"selected_categories,omitempty"`
}

// AllCategories returns true when no category filter was applied
func (p PeriodInfo) AllCategories() bool {
	return len(p.SelectedCategories) == 0
}

// AnalysisResult is the outcome of one rolling-window analysis. It is
// computed fresh per request and never cached.
type AnalysisResult struct {
	RunID        string       `json:"run_id"`
	GeneratedAt  time.Time    `json:"generated_at"`
	Current      Window       `json:"current_window"`
	Reference    Window       `json:"reference_window"`
	Period       PeriodInfo   `json:"period_info"`
	ACVCurrent   *Aggregation `json:"acv_current"`
	ACVReference *Aggregation `json:"acv_reference"`
	TCVCurrent   *Aggregation `json:"tcv_current"`
	TCVReference *Aggregation `json:"tcv_reference"`
}

// Pair returns the current and reference aggregations for a dataset
func (r *AnalysisResult) Pair(kind DatasetKind) (*Aggregation, *Aggregation) {
	if kind == DatasetTCV {
		return r.TCVCurrent, r.TCVReference
	}
	return r.ACVCurrent, r.ACVReference
}

// Delta compares a current amount against a reference amount
type Delta struct {
	Current           decimal.Decimal `json:"current"`
	Reference         decimal.Decimal `json:"reference"`
	Absolute          decimal.Decimal `json:"absolute"`
	Percent           decimal.Decimal `json:"percent"`
	PercentApplicable bool            `json:"percent_applicable"`
}

// ComputeDelta returns current-reference and, when reference is non-zero,
// (current-reference)/reference*100. A zero reference leaves the percent
// not applicable.
func ComputeDelta(current, reference decimal.Decimal) Delta {
	d := Delta{
		Current:   current,
		Reference: reference,
		Absolute:  current.Sub(reference),
	}
	if !reference.IsZero() {
		d.Percent = d.Absolute.Div(reference).Mul(decimal.NewFromInt(100))
		d.PercentApplicable = true
	}
	return d
}

// PercentString formats the percent with two decimals or "N/A"
func (d Delta) PercentString() string {
	if !d.PercentApplicable {
		return "N/A"
	}
	return d.Percent.StringFixed(2) + "%"
}

// MarshalJSON renders a not-applicable percent as null
func (d Delta) MarshalJSON() ([]byte, error) {
	var percent *string
	if d.PercentApplicable {
		p := d.Percent.StringFixed(2)
		percent = &p
	}
	return json.Marshal(&struct {
		Current   string  `json:"current"`
		Reference string  `json:"reference"`
		Absolute  string  `json:"absolute"`
		Percent   *string `json:"percent"`
	}{
		Current:   d.Current.String(),
		Reference: d.Reference.String(),
		Absolute:  d.Absolute.String(),
		Percent:   percent,
	})
}
