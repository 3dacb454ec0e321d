package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/normalizer"
	"booking-rollup-analyzer/internal/reporter"
	"booking-rollup-analyzer/pkg/logger"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	s, err := FromViper(newViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.OutputFormat != "console" {
		t.Errorf("expected console output, got %s", s.OutputFormat)
	}
	if s.FiscalStartMonth != int(time.August) {
		t.Errorf("expected August fiscal start, got %d", s.FiscalStartMonth)
	}
	if s.ACVValueColumn != normalizer.ColumnACVValue || s.TCVValueColumn != normalizer.ColumnTCVValue {
		t.Errorf("unexpected value columns: %s / %s", s.ACVValueColumn, s.TCVValueColumn)
	}
	if s.Delimiter != "," {
		t.Errorf("expected comma delimiter, got %q", s.Delimiter)
	}
}

func TestFromViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	content := `acv-file: acv.xlsx
tcv-file: tcv.xlsx
end-month: Jul FY2025
category:
  - Cloud
  - Security
output-format: JSON
fiscal-start-month: 7
columns:
  category:
    - Segment
  value:
    - Net USD
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ACVFile != "acv.xlsx" || s.EndMonth != "Jul FY2025" {
		t.Errorf("unexpected settings: %+v", s)
	}
	if strings.Join(s.Categories, ",") != "Cloud,Security" {
		t.Errorf("unexpected categories: %v", s.Categories)
	}
	if s.OutputFormat != "json" {
		t.Errorf("expected output format to be lowercased, got %s", s.OutputFormat)
	}
	if s.FiscalStartMonth != 7 {
		t.Errorf("expected fiscal start month 7, got %d", s.FiscalStartMonth)
	}
	if got := s.Columns["category"]; len(got) != 1 || got[0] != "Segment" {
		t.Errorf("unexpected category override: %v", got)
	}
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("ANALYZER_END_MONTH", "Mar FY2024")
	t.Setenv("ANALYZER_OUTPUT_FORMAT", "yaml")

	v := newViper()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.EndMonth != "Mar FY2024" || s.OutputFormat != "yaml" {
		t.Errorf("expected environment overrides, got %+v", s)
	}
}

func TestFromViper_EnvironmentLists(t *testing.T) {
	t.Setenv("ANALYZER_CATEGORY", "Cloud, Hybrid Cloud,,Security")

	v := newViper()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(s.Categories, "|") != "Cloud|Hybrid Cloud|Security" {
		t.Errorf("expected comma separated categories, got %q", s.Categories)
	}
}

func TestFromViper_ColumnOverrideWithSpaces(t *testing.T) {
	v := newViper()
	v.Set(KeyColumns, map[string]interface{}{"value": "Net USD"})

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Columns["value"]; len(got) != 1 || got[0] != "Net USD" {
		t.Errorf("expected a single column name, got %q", got)
	}
}

func TestSettings_ValidateOutput(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		file        string
		expectError bool
	}{
		{"console to stdout", "console", "", false},
		{"xlsx without file", "xlsx", "", true},
		{"xlsx with file", "xlsx", "out.xlsx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{OutputFormat: tt.format, OutputFile: tt.file}
			err := s.ValidateOutput()
			if (err != nil) != tt.expectError {
				t.Errorf("ValidateOutput() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Settings)
		expectError bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"start month zero", func(s *Settings) { s.FiscalStartMonth = 0 }, true},
		{"start month 13", func(s *Settings) { s.FiscalStartMonth = 13 }, true},
		{"unknown format", func(s *Settings) { s.OutputFormat = "pdf" }, true},
		{"xlsx without file is checked by ValidateOutput", func(s *Settings) { s.OutputFormat = "xlsx" }, false},
		{"long delimiter", func(s *Settings) { s.Delimiter = ";;" }, true},
		{"unknown override field", func(s *Settings) { s.Columns["region"] = []string{"Geo"} }, true},
		{"known override field", func(s *Settings) { s.Columns["date"] = []string{"Booked"} }, false},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromViper(newViper())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.modify(s)

			err = s.Validate()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateNormalizerConfig(t *testing.T) {
	s, _ := FromViper(newViper())
	s.FiscalStartMonth = int(time.July)
	s.TCVValueColumn = "Total Contract Value"
	s.Columns["category"] = []string{"Segment"}

	config, err := CreateNormalizerConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Calendar.StartMonth != time.July {
		t.Errorf("expected July calendar, got %s", config.Calendar.StartMonth)
	}
	if config.ValueColumns[models.DatasetTCV] != "Total Contract Value" {
		t.Errorf("unexpected TCV value column: %s", config.ValueColumns[models.DatasetTCV])
	}
	if config.ValueColumns[models.DatasetACV] != normalizer.ColumnACVValue {
		t.Errorf("unexpected ACV value column: %s", config.ValueColumns[models.DatasetACV])
	}

	bindings := config.Rules(models.DatasetTCV).Bind([]string{"Architecture", "Segment"})
	if bindings[models.FieldCategory].Column != "Segment" {
		t.Errorf("expected override to win, got %s", bindings[models.FieldCategory].Column)
	}
}

func TestCreateLoadConfig(t *testing.T) {
	s, _ := FromViper(newViper())
	s.Delimiter = ";"
	s.Sheet = "Bookings"

	config, err := CreateLoadConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Delimiter != ';' || config.Sheet != "Bookings" {
		t.Errorf("unexpected load config: %+v", config)
	}
}

func TestCreateAnalyzerConfig(t *testing.T) {
	s, _ := FromViper(newViper())
	s.Sequential = true

	config, err := CreateAnalyzerConfig(s, logger.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.Sequential || config.Logger == nil {
		t.Errorf("unexpected analyzer config: %+v", config)
	}
	if config.Calendar.StartMonth != time.August {
		t.Errorf("expected August calendar, got %s", config.Calendar.StartMonth)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format      string
		diagnostics bool
		legend      bool
	}{
		{"console", true, true},
		{"csv", false, true},
		{"json", true, false},
		{"yaml", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s, _ := FromViper(newViper())
			s.OutputFormat = tt.format

			config := CreateReportConfig(s)
			if config.Format != reporter.OutputFormat(tt.format) {
				t.Errorf("expected format %s, got %s", tt.format, config.Format)
			}
			if config.IncludeDiagnostics != tt.diagnostics {
				t.Errorf("expected IncludeDiagnostics %v", tt.diagnostics)
			}
			if config.IncludeSizeLegend != tt.legend {
				t.Errorf("expected IncludeSizeLegend %v", tt.legend)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	s, _ := FromViper(newViper())
	config := CreateLoggerConfig(s)
	if config.Level != logger.InfoLevel || config.Format != logger.TextFormat {
		t.Errorf("unexpected default logger config: %+v", config)
	}

	s.Verbose = true
	s.LogFormat = "json"
	s.LogFile = filepath.Join(t.TempDir(), "analyzer.log")
	config = CreateLoggerConfig(s)
	if config.Level != logger.DebugLevel || config.Format != logger.JSONFormat || config.Output != logger.FileOutput {
		t.Errorf("unexpected verbose logger config: %+v", config)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("logger config should be valid: %v", err)
	}
}
