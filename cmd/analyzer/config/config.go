package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"booking-rollup-analyzer/internal/analyzer"
	"booking-rollup-analyzer/internal/fiscal"
	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/normalizer"
	"booking-rollup-analyzer/internal/parsers"
	"booking-rollup-analyzer/internal/reporter"
	"booking-rollup-analyzer/pkg/logger"
)

// Viper keys shared by flags, the config file and ANALYZER_* variables
const (
	KeyACVFile          = "acv-file"
	KeyTCVFile          = "tcv-file"
	KeyEndMonth         = "end-month"
	KeyCategories       = "category"
	KeyOutputFormat     = "output-format"
	KeyOutputFile       = "output-file"
	KeySortByAmount     = "sort-by-amount"
	KeyFiscalStartMonth = "fiscal-start-month"
	KeyACVValueColumn   = "acv-value-column"
	KeyTCVValueColumn   = "tcv-value-column"
	KeyColumns          = "columns"
	KeyDelimiter        = "delimiter"
	KeySheet            = "sheet"
	KeySequential       = "sequential"
	KeyVerbose          = "verbose"
	KeyLogFormat        = "log-format"
	KeyLogFile          = "log-file"
)

// Settings is the resolved CLI configuration
type Settings struct {
	ACVFile      string
	TCVFile      string
	EndMonth     string
	Categories   []string
	OutputFormat string
	OutputFile   string
	SortByAmount bool

	FiscalStartMonth int
	ACVValueColumn   string
	TCVValueColumn   string
	// Columns maps a field name to extra exact column names
	Columns map[string][]string

	Delimiter  string
	Sheet      string
	Sequential bool

	Verbose   bool
	LogFormat string
	LogFile   string
}

// SetDefaults registers default values for keys not backed by a flag
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyFiscalStartMonth, int(fiscal.Default.StartMonth))
	v.SetDefault(KeyACVValueColumn, normalizer.ColumnACVValue)
	v.SetDefault(KeyTCVValueColumn, normalizer.ColumnTCVValue)
	v.SetDefault(KeyDelimiter, ",")
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
}

// FromViper reads and validates the settings held by v
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		ACVFile:          v.GetString(KeyACVFile),
		TCVFile:          v.GetString(KeyTCVFile),
		EndMonth:         strings.TrimSpace(v.GetString(KeyEndMonth)),
		Categories:       stringList(v, KeyCategories),
		OutputFormat:     strings.ToLower(v.GetString(KeyOutputFormat)),
		OutputFile:       v.GetString(KeyOutputFile),
		SortByAmount:     v.GetBool(KeySortByAmount),
		FiscalStartMonth: v.GetInt(KeyFiscalStartMonth),
		ACVValueColumn:   v.GetString(KeyACVValueColumn),
		TCVValueColumn:   v.GetString(KeyTCVValueColumn),
		Columns:          map[string][]string{},
		Delimiter:        v.GetString(KeyDelimiter),
		Sheet:            v.GetString(KeySheet),
		Sequential:       v.GetBool(KeySequential),
		Verbose:          v.GetBool(KeyVerbose),
		LogFormat:        v.GetString(KeyLogFormat),
		LogFile:          v.GetString(KeyLogFile),
	}

	for field := range v.GetStringMap(KeyColumns) {
		s.Columns[field] = stringList(v, KeyColumns+"."+field)
	}

	if s.OutputFormat == "" {
		s.OutputFormat = string(reporter.FormatConsole)
	}
	if s.FiscalStartMonth == 0 {
		s.FiscalStartMonth = int(fiscal.Default.StartMonth)
	}
	if s.Delimiter == "" {
		s.Delimiter = ","
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings that do not depend on the input files
func (s *Settings) Validate() error {
	if s.FiscalStartMonth < 1 || s.FiscalStartMonth > 12 {
		return fmt.Errorf("fiscal start month must be between 1 and 12, got %d", s.FiscalStartMonth)
	}
	if !reporter.OutputFormat(s.OutputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv, yaml, xlsx", s.OutputFormat)
	}
	if utf8.RuneCountInString(s.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", s.Delimiter)
	}
	for field := range s.Columns {
		if !isKnownField(field) {
			return fmt.Errorf("unknown column override field '%s'. Valid fields: fiscal_month, date, category, value", field)
		}
	}
	if s.LogFormat != string(logger.TextFormat) && s.LogFormat != string(logger.JSONFormat) {
		return fmt.Errorf("invalid log format '%s'. Valid formats: text, json", s.LogFormat)
	}
	return nil
}

// ValidateOutput checks that the output format can be written where the
// report is going. Only the analyze command writes reports.
func (s *Settings) ValidateOutput() error {
	if reporter.OutputFormat(s.OutputFormat).IsBinary() && s.OutputFile == "" {
		return fmt.Errorf("output format %s requires --output-file", s.OutputFormat)
	}
	return nil
}

// stringList reads a list setting. A plain string, as given by an ANALYZER_*
// variable, is split on commas like the --category flag.
func stringList(v *viper.Viper, key string) []string {
	var items []string
	if raw, ok := v.Get(key).(string); ok {
		items = strings.Split(raw, ",")
	} else {
		items = v.GetStringSlice(key)
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isKnownField(field string) bool {
	switch models.Field(field) {
	case models.FieldFiscalMonth, models.FieldDate, models.FieldCategory, models.FieldValue:
		return true
	default:
		return false
	}
}

// CreateLoggerConfig creates a logger configuration from the settings
func CreateLoggerConfig(s *Settings) *logger.Config {
	config := logger.DefaultConfig()
	if s.Verbose {
		config = logger.DebugConfig()
	}
	config.Format = logger.Format(s.LogFormat)
	if s.LogFile != "" {
		config.Output = logger.FileOutput
		config.File = s.LogFile
	}
	return config
}

// CreateLoadConfig creates the file loader configuration
func CreateLoadConfig(s *Settings) (*parsers.LoadConfig, error) {
	config := parsers.DefaultLoadConfig()
	config.Delimiter, _ = utf8.DecodeRuneInString(s.Delimiter)
	config.Sheet = s.Sheet

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid load config: %w", err)
	}
	return config, nil
}

// CreateCalendar creates the fiscal calendar
func CreateCalendar(s *Settings) (fiscal.Calendar, error) {
	return fiscal.NewCalendar(time.Month(s.FiscalStartMonth))
}

// CreateNormalizerConfig creates the normalizer configuration with value
// column names and column overrides applied
func CreateNormalizerConfig(s *Settings) (*normalizer.Config, error) {
	calendar, err := CreateCalendar(s)
	if err != nil {
		return nil, err
	}

	config := normalizer.DefaultConfig()
	config.Calendar = calendar
	if s.ACVValueColumn != "" {
		config.ValueColumns[models.DatasetACV] = s.ACVValueColumn
	}
	if s.TCVValueColumn != "" {
		config.ValueColumns[models.DatasetTCV] = s.TCVValueColumn
	}
	for field, columns := range s.Columns {
		config.Overrides[models.Field(field)] = columns
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalizer config: %w", err)
	}
	return config, nil
}

// CreateAnalyzerConfig creates the analyzer configuration
func CreateAnalyzerConfig(s *Settings, log logger.Logger) (*analyzer.Config, error) {
	calendar, err := CreateCalendar(s)
	if err != nil {
		return nil, err
	}

	config := analyzer.DefaultConfig()
	config.Calendar = calendar
	config.Sequential = s.Sequential
	config.Logger = log
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(s *Settings) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(s.OutputFormat)
	config.SortByAmount = s.SortByAmount

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludeSizeLegend = true
		config.IncludeDiagnostics = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeDiagnostics = false
	case reporter.FormatJSON, reporter.FormatYAML, reporter.FormatXLSX:
		config.IncludeSizeLegend = false
	}

	return config
}
