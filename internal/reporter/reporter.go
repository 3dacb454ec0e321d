// Package reporter renders rolling-window analysis results.
//
// Supported output formats:
//   - Console: side-by-side current and reference tables for the terminal
//   - JSON and YAML: structured data for programmatic consumption
//   - CSV: one row per dataset and category
//   - XLSX: one sheet per dataset with size-colored TCV cells
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/sizing"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatYAML    OutputFormat = "yaml"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatYAML, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	IncludeDiagnostics bool `json:"include_diagnostics" mapstructure:"include_diagnostics"`
	IncludeSizeLegend  bool `json:"include_size_legend" mapstructure:"include_size_legend"`

	TableMaxWidth int `json:"table_max_width" mapstructure:"table_max_width"`

	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	SortByAmount bool `json:"sort_by_amount" mapstructure:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeDiagnostics: true,
		IncludeSizeLegend:  true,
		TableMaxWidth:      120,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
		SortByAmount:       false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' {
		return fmt.Errorf("invalid CSV delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator renders analysis results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders result to writer. Datasets are optional and only
// contribute ingestion diagnostics.
func (rg *ReportGenerator) GenerateReport(result *models.AnalysisResult, writer io.Writer, datasets ...*models.Dataset) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}

	if !rg.config.IncludeDiagnostics {
		datasets = nil
	}
	report := BuildReport(result, rg.config.SortByAmount, datasets...)

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	case FormatYAML:
		return rg.generateYAMLReport(report, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	p := report.Period
	fmt.Fprintf(writer, "ROLLING 12-MONTH BOOKINGS REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Current:   %s - %s (%s to %s)\n", p.CurrentStartFiscal, p.CurrentEndFiscal, p.CurrentStart, p.CurrentEnd)
	fmt.Fprintf(writer, "Reference: %s - %s (%s to %s)\n", p.ReferenceStartFiscal, p.ReferenceEndFiscal, p.ReferenceStart, p.ReferenceEnd)
	if p.AllCategories() {
		fmt.Fprintf(writer, "Categories: all\n\n")
	} else {
		fmt.Fprintf(writer, "Categories: %s\n\n", strings.Join(p.SelectedCategories, ", "))
	}

	for _, section := range report.Sections {
		fmt.Fprintf(writer, "=== %s ===\n", section.Dataset)
		for _, note := range section.Notes {
			fmt.Fprintf(writer, "NOTE: %s\n", note)
		}
		rg.printSectionTable(section, writer)
		if section.Diagnostics != nil {
			rg.printDiagnostics(section.Diagnostics, writer)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeSizeLegend {
		fmt.Fprintf(writer, "=== TCV SIZE LEGEND ===\n")
		rg.printSizeLegend(writer)
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}

// generateYAMLReport generates a structured YAML report
func (rg *ReportGenerator) generateYAMLReport(report *Report, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return encoder.Close()
}

// generateCSVReport writes one record per dataset and category, totals last
func (rg *ReportGenerator) generateCSVReport(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		headers := []string{
			"Dataset",
			"Category",
			"Current",
			"Reference",
			"Change",
			"Percent_Change",
			"Size",
			"Current_Window",
			"Reference_Window",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	p := report.Period
	currentWindow := p.CurrentStartFiscal + " - " + p.CurrentEndFiscal
	referenceWindow := p.ReferenceStartFiscal + " - " + p.ReferenceEndFiscal

	for _, section := range report.Sections {
		rows := append(append([]Row{}, section.Rows...), section.Total)
		for _, row := range rows {
			percent := ""
			if row.Percent != nil {
				percent = *row.Percent
			}
			record := []string{
				string(section.Dataset),
				row.Category,
				row.Current,
				row.Reference,
				row.Change,
				percent,
				row.Size,
				currentWindow,
				referenceWindow,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write %s record: %w", section.Dataset, err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSectionTable(section Section, writer io.Writer) {
	nameWidth := rg.categoryWidth(section)
	withSize := section.Dataset == models.DatasetTCV

	header := fmt.Sprintf("%-*s %16s %16s %16s %9s", nameWidth, "Category", "Current", "Reference", "Change", "Change %")
	if withSize {
		header += "  Size"
	}
	fmt.Fprintf(writer, "%s\n", header)
	fmt.Fprintf(writer, "%s\n", strings.Repeat("-", len(header)))

	for _, row := range section.Rows {
		rg.printRow(row, nameWidth, withSize, writer)
	}
	if len(section.Rows) == 0 {
		fmt.Fprintf(writer, "%-*s\n", nameWidth, "(no bookings)")
	}
	fmt.Fprintf(writer, "%s\n", strings.Repeat("-", len(header)))
	rg.printRow(section.Total, nameWidth, withSize, writer)
}

func (rg *ReportGenerator) printRow(row Row, nameWidth int, withSize bool, writer io.Writer) {
	line := fmt.Sprintf("%-*s %16s %16s %16s %9s",
		nameWidth, truncate(row.Category, nameWidth),
		formatUSD(row.delta.Current),
		formatUSD(row.delta.Reference),
		formatUSD(row.delta.Absolute),
		row.PercentLabel())
	if withSize {
		line += "  " + row.Size
	}
	fmt.Fprintf(writer, "%s\n", line)
}

// categoryWidth fits the longest category name into the configured width
func (rg *ReportGenerator) categoryWidth(section Section) int {
	width := len("Category")
	for _, row := range section.Rows {
		if n := utf8.RuneCountInString(row.Category); n > width {
			width = n
		}
	}
	// four amount columns and the size column take the rest
	limit := rg.config.TableMaxWidth - 16*3 - 9 - 10
	if limit < 10 {
		limit = 10
	}
	if width > limit {
		width = limit
	}
	return width
}

func (rg *ReportGenerator) printDiagnostics(diag *models.Diagnostics, writer io.Writer) {
	fmt.Fprintf(writer, "Ingestion issues:\n")
	for _, msg := range diag.Messages {
		fmt.Fprintf(writer, "  - %s\n", msg)
	}
	if diag.InvalidLabels > 0 {
		fmt.Fprintf(writer, "  - %d rows with an invalid fiscal month label\n", diag.InvalidLabels)
	}
	if diag.UnparsedDates > 0 {
		fmt.Fprintf(writer, "  - %d rows with an unparseable date\n", diag.UnparsedDates)
	}
	if diag.UncoercibleValues > 0 {
		fmt.Fprintf(writer, "  - %d rows with a non-numeric amount counted as zero\n", diag.UncoercibleValues)
	}
}

func (rg *ReportGenerator) printSizeLegend(writer io.Writer) {
	lower := "$0"
	for _, size := range sizing.All() {
		upper, ok := sizing.UpperBound(size)
		if !ok {
			fmt.Fprintf(writer, "  %-3s %-7s over %s\n", size, size.Color(), lower)
			continue
		}
		fmt.Fprintf(writer, "  %-3s %-7s up to %s\n", size, size.Color(), formatUSD(upper))
		lower = formatUSD(upper)
	}
}

// truncate shortens s to width runes
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// GetConfiguration returns a copy of the current configuration
func (rg *ReportGenerator) GetConfiguration() ReportConfig {
	return *rg.config
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rg.config = config
	return nil
}

// amountFloat converts a report amount for numeric spreadsheet cells
func amountFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
