package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnknownCategory is assigned when no category column exists or a cell is blank.
	UnknownCategory = "Unknown"
	// TotalCategory is the synthetic key holding the sum across all categories.
	TotalCategory = "Total"
)

// DatasetKind identifies which booking metric a dataset carries
type DatasetKind string

const (
	// DatasetACV holds annual contract value bookings
	DatasetACV DatasetKind = "ACV"
	// DatasetTCV holds total contract value bookings
	DatasetTCV DatasetKind = "TCV"
)

// String returns the string representation of DatasetKind
func (k DatasetKind) String() string {
	return string(k)
}

// IsValid checks if the dataset kind is known
func (k DatasetKind) IsValid() bool {
	return k == DatasetACV || k == DatasetTCV
}

// RawTable is a loaded dataset before normalization: a header row and
// untyped cells. Cells loaded from files are strings; programmatic callers
// may supply numbers.
type RawTable struct {
	Source  string          `json:"source"`
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"rows"`
}

// NewRawTable creates an empty table with the given headers
func NewRawTable(source string, headers ...string) *RawTable {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = strings.TrimSpace(h)
	}
	return &RawTable{
		Source:  source,
		Headers: cleaned,
		Rows:    make([][]interface{}, 0),
	}
}

// AddRow appends a row of cells
func (t *RawTable) AddRow(cells ...interface{}) {
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of data rows
func (t *RawTable) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of an exactly named header, or -1
func (t *RawTable) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row/col, or nil when the row is short
func (t *RawTable) Cell(row, col int) interface{} {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][col]
}

// CellString returns the trimmed textual form of a cell
func (t *RawTable) CellString(row, col int) string {
	switch v := t.Cell(row, col).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// BookingRecord is one normalized row of a dataset
type BookingRecord struct {
	Line        int             `json:"line"`
	Date        time.Time       `json:"date"`
	HasDate     bool            `json:"has_date"`
	FiscalMonth string          `json:"fiscal_month"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
}

// String returns a string representation of the BookingRecord
func (r *BookingRecord) String() string {
	date := "none"
	if r.HasDate {
		date = r.Date.Format("2006-01")
	}
	return fmt.Sprintf("BookingRecord{Line: %d, Date: %s, FiscalMonth: %s, Category: %s, Amount: %s}",
		r.Line, date, r.FiscalMonth, r.Category, r.Amount.String())
}

// MarshalJSON implements custom JSON marshaling for BookingRecord
func (r *BookingRecord) MarshalJSON() ([]byte, error) {
	type Alias BookingRecord
	date := ""
	if r.HasDate {
		date = r.Date.Format("2006-01-02")
	}
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: r.Amount.String(),
		Date:   date,
		Alias:  (*Alias)(r),
	})
}

// Field names a canonical column the normalizer derives
type Field string

const (
	FieldFiscalMonth Field = "fiscal_month"
	FieldDate        Field = "date"
	FieldCategory    Field = "category"
	FieldValue       Field = "value"
)

// ColumnBinding records which source column, if any, serves a field
type ColumnBinding struct {
	Field  Field  `json:"field"`
	Column string `json:"column,omitempty"`
	Rule   string `json:"rule,omitempty"`
	Found  bool   `json:"found"`
}

// String returns a string representation of the ColumnBinding
func (b ColumnBinding) String() string {
	if !b.Found {
		return fmt.Sprintf("%s: <missing>", b.Field)
	}
	return fmt.Sprintf("%s: %q (%s)", b.Field, b.Column, b.Rule)
}

// Diagnostics collects the tolerant-ingestion events of one dataset
type Diagnostics struct {
	MissingColumns    []Field  `json:"missing_columns,omitempty" yaml:"missing_columns,omitempty"`
	InvalidLabels     int      `json:"invalid_labels" yaml:"invalid_labels"`
	UnparsedDates     int      `json:"unparsed_dates" yaml:"unparsed_dates"`
	UncoercibleValues int      `json:"uncoercible_values" yaml:"uncoercible_values"`
	Messages          []string `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// IsMissing reports whether a field had no matching column
func (d *Diagnostics) IsMissing(field Field) bool {
	for _, f := range d.MissingColumns {
		if f == field {
			return true
		}
	}
	return false
}

// HasIssues returns true if any column was missing or any row degraded
func (d *Diagnostics) HasIssues() bool {
	return len(d.MissingColumns) > 0 || d.InvalidLabels > 0 || d.UnparsedDates > 0 || d.UncoercibleValues > 0
}

// Dataset is a normalized, date-sorted collection of booking records.
// It is built once by the normalizer and never modified afterwards.
type Dataset struct {
	Kind        DatasetKind             `json:"kind"`
	Source      string                  `json:"source"`
	Records     []BookingRecord         `json:"records"`
	Columns     map[Field]ColumnBinding `json:"columns"`
	Diagnostics Diagnostics             `json:"diagnostics"`
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Column returns the binding for a field
func (d *Dataset) Column(field Field) ColumnBinding {
	if b, ok := d.Columns[field]; ok {
		return b
	}
	return ColumnBinding{Field: field}
}

// HasDates reports whether the dataset has any date source at all, either
// a date column or a fiscal month column
func (d *Dataset) HasDates() bool {
	return d.Column(FieldDate).Found || d.Column(FieldFiscalMonth).Found
}

// HasValues reports whether a value column was found
func (d *Dataset) HasValues() bool {
	return d.Column(FieldValue).Found
}

// FiscalMonths returns the distinct fiscal month labels in record order
func (d *Dataset) FiscalMonths() []string {
	seen := make(map[string]bool)
	var months []string
	for _, r := range d.Records {
		if r.FiscalMonth == "" || seen[r.FiscalMonth] {
			continue
		}
		seen[r.FiscalMonth] = true
		months = append(months, r.FiscalMonth)
	}
	return months
}

// Categories returns the distinct categories in record order
func (d *Dataset) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, r := range d.Records {
		if seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		categories = append(categories, r.Category)
	}
	return categories
}
