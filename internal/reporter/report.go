package reporter

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/sizing"
)

// Report is the presentation model shared by every output format. Amounts
// are pre-formatted strings so that JSON, YAML and CSV agree exactly.
type Report struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Period      models.PeriodInfo `json:"period" yaml:"period"`
	Sections    []Section         `json:"sections" yaml:"sections"`
}

// Section pairs the current and reference aggregation of one dataset
type Section struct {
	Dataset         models.DatasetKind       `json:"dataset" yaml:"dataset"`
	CurrentStatus   models.AggregationStatus `json:"current_status" yaml:"current_status"`
	ReferenceStatus models.AggregationStatus `json:"reference_status" yaml:"reference_status"`
	Notes           []string                 `json:"notes,omitempty" yaml:"notes,omitempty"`
	Rows            []Row                    `json:"rows" yaml:"rows"`
	Total           Row                      `json:"total" yaml:"total"`
	Diagnostics     *models.Diagnostics      `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Row compares one category across the two windows
type Row struct {
	Category  string  `json:"category" yaml:"category"`
	Current   string  `json:"current" yaml:"current"`
	Reference string  `json:"reference" yaml:"reference"`
	Change    string  `json:"change" yaml:"change"`
	Percent   *string `json:"percent_change" yaml:"percent_change"`
	Size      string  `json:"size,omitempty" yaml:"size,omitempty"`

	delta models.Delta
}

// PercentLabel returns the percent change or "N/A"
func (r Row) PercentLabel() string {
	if r.Percent == nil {
		return "N/A"
	}
	return *r.Percent + "%"
}

// BuildReport turns an analysis result into a Report. Datasets, when given,
// contribute their ingestion diagnostics.
func BuildReport(result *models.AnalysisResult, sortByAmount bool, datasets ...*models.Dataset) *Report {
	report := &Report{
		RunID:       result.RunID,
		GeneratedAt: result.GeneratedAt,
		Period:      result.Period,
	}

	for _, kind := range []models.DatasetKind{models.DatasetACV, models.DatasetTCV} {
		current, reference := result.Pair(kind)
		section := buildSection(kind, current, reference, sortByAmount)
		for _, ds := range datasets {
			if ds != nil && ds.Kind == kind && ds.Diagnostics.HasIssues() {
				diag := ds.Diagnostics
				section.Diagnostics = &diag
			}
		}
		report.Sections = append(report.Sections, section)
	}

	return report
}

func buildSection(kind models.DatasetKind, current, reference *models.Aggregation, sortByAmount bool) Section {
	section := Section{Dataset: kind}
	if current == nil {
		current = models.UnavailableAggregation(kind, models.PeriodCurrent, "not computed")
	}
	if reference == nil {
		reference = models.UnavailableAggregation(kind, models.PeriodReference, "not computed")
	}
	section.CurrentStatus = current.Status
	section.ReferenceStatus = reference.Status
	for _, agg := range []*models.Aggregation{current, reference} {
		if !agg.IsAvailable() {
			section.Notes = append(section.Notes, string(agg.Period)+" window unavailable: "+agg.Reason)
		}
	}

	seen := make(map[string]bool)
	var categories []string
	for _, agg := range []*models.Aggregation{current, reference} {
		for _, c := range agg.Categories() {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	sort.Strings(categories)

	withSize := kind == models.DatasetTCV
	for _, c := range categories {
		section.Rows = append(section.Rows, newRow(c, current.Get(c), reference.Get(c), withSize))
	}
	if sortByAmount {
		sort.SliceStable(section.Rows, func(i, j int) bool {
			return section.Rows[i].delta.Current.GreaterThan(section.Rows[j].delta.Current)
		})
	}
	section.Total = newRow(models.TotalCategory, current.Total, reference.Total, withSize)

	return section
}

func newRow(category string, current, reference decimal.Decimal, withSize bool) Row {
	delta := models.ComputeDelta(current, reference)
	row := Row{
		Category:  category,
		Current:   current.StringFixed(2),
		Reference: reference.StringFixed(2),
		Change:    delta.Absolute.StringFixed(2),
		delta:     delta,
	}
	if delta.PercentApplicable {
		p := delta.Percent.StringFixed(2)
		row.Percent = &p
	}
	if withSize {
		row.Size = sizing.Classify(current).String()
	}
	return row
}

// formatUSD renders a whole-dollar amount with thousands separators
func formatUSD(d decimal.Decimal) string {
	s := d.Round(0).Abs().String()
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if d.Round(0).IsNegative() {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
