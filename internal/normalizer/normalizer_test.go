package normalizer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"booking-rollup-analyzer/internal/fiscal"
	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/parsers"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

func newTestNormalizer(config *Config) *Normalizer {
	return New(config, logger.Discard())
}

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_FiscalMonthColumn(t *testing.T) {
	table := models.NewRawTable("acv.csv", "FISCAL_MONTH_NAME", "Architecture", "Sum of ACV_BOOKINGS_AMT_USD")
	table.AddRow("Jul FY2025", "Cloud", "$2,000,000")
	table.AddRow("Aug FY2025", "Security", "1000000")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetACV, table)
	require.NoError(t, err)
	require.Equal(t, 2, dataset.Len())

	// sorted by date: Aug 2024 before Jul 2025
	first, second := dataset.Records[0], dataset.Records[1]
	assert.Equal(t, "Aug FY2025", first.FiscalMonth)
	assert.Equal(t, month(2024, time.August), first.Date)
	assert.Equal(t, "Security", first.Category)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(1_000_000)))

	assert.Equal(t, month(2025, time.July), second.Date)
	assert.True(t, second.Amount.Equal(decimal.NewFromInt(2_000_000)))

	assert.Equal(t, "exact:FISCAL_MONTH_NAME", dataset.Column(models.FieldFiscalMonth).Rule)
	assert.False(t, dataset.Column(models.FieldDate).Found)
	assert.True(t, dataset.HasDates())
	assert.False(t, dataset.Diagnostics.HasIssues())
}

func TestNormalize_DateColumnDerivesLabel(t *testing.T) {
	table := models.NewRawTable("tcv.csv", "Date", "Architecture", "Sum of Bookings")
	table.AddRow("2024-08-17", "Cloud", "10")
	table.AddRow("07/31/2025", "Cloud", "20")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)

	assert.Equal(t, month(2024, time.August), dataset.Records[0].Date)
	assert.Equal(t, "Aug FY2025", dataset.Records[0].FiscalMonth)
	assert.Equal(t, month(2025, time.July), dataset.Records[1].Date)
	assert.Equal(t, "Jul FY2025", dataset.Records[1].FiscalMonth)
}

func TestNormalize_XLSXDateCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcv.xlsx")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "Architecture", "Sum of Bookings"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{
		time.Date(2024, time.August, 15, 0, 0, 0, 0, time.UTC), "Cloud", 30000000,
	}))
	require.NoError(t, book.SaveAs(path))
	require.NoError(t, book.Close())

	table, err := parsers.NewLoader(nil, logger.Discard()).LoadFile(context.Background(), path)
	require.NoError(t, err)

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)
	require.Equal(t, 1, dataset.Len())

	record := dataset.Records[0]
	assert.True(t, record.HasDate)
	assert.Equal(t, month(2024, time.August), record.Date)
	assert.Equal(t, "Aug FY2025", record.FiscalMonth)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(30_000_000)))
	assert.Zero(t, dataset.Diagnostics.UnparsedDates)
}

func TestNormalize_FuzzyColumns(t *testing.T) {
	table := models.NewRawTable("export.csv", "Booking Datum", "Solution Arch", "Total Amount")
	table.AddRow("2025-01-05", "Data", "$5")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetACV, table)
	require.NoError(t, err)

	assert.Equal(t, "Booking Datum", dataset.Column(models.FieldDate).Column)
	assert.Equal(t, "Solution Arch", dataset.Column(models.FieldCategory).Column)
	assert.Equal(t, "Total Amount", dataset.Column(models.FieldValue).Column)
	assert.Equal(t, "Data", dataset.Records[0].Category)
	assert.True(t, dataset.Records[0].Amount.Equal(decimal.NewFromInt(5)))
}

func TestNormalize_MissingColumnsDegrade(t *testing.T) {
	table := models.NewRawTable("odd.csv", "Region", "Notes")
	table.AddRow("EMEA", "first")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)
	require.Equal(t, 1, dataset.Len())

	record := dataset.Records[0]
	assert.False(t, record.HasDate)
	assert.Equal(t, models.UnknownCategory, record.Category)
	assert.True(t, record.Amount.IsZero())

	for _, field := range []models.Field{models.FieldFiscalMonth, models.FieldDate, models.FieldCategory, models.FieldValue} {
		assert.True(t, dataset.Diagnostics.IsMissing(field), "expected %s to be reported missing", field)
	}
	assert.False(t, dataset.HasDates())
	assert.False(t, dataset.HasValues())
	assert.Len(t, dataset.Diagnostics.Messages, 4)
}

func TestNormalize_FoundButEmptyIsNotMissing(t *testing.T) {
	table := models.NewRawTable("empty.csv", "Date", "Architecture", "Sum of Bookings")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)

	assert.Equal(t, 0, dataset.Len())
	assert.True(t, dataset.HasDates())
	assert.True(t, dataset.HasValues())
	assert.Empty(t, dataset.Diagnostics.MissingColumns)
}

func TestNormalize_RowLevelDiagnostics(t *testing.T) {
	table := models.NewRawTable("acv.csv", "FISCAL_MONTH_NAME", "Date", "Architecture", "Sum of ACV_BOOKINGS_AMT_USD")
	table.AddRow("Foo FY2025", "2025-03-01", "", "n/a")
	table.AddRow("Bad", "", "Cloud", "100")
	table.AddRow("", "someday", "Cloud", "100")

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetACV, table)
	require.NoError(t, err)

	assert.Equal(t, 2, dataset.Diagnostics.InvalidLabels)
	assert.Equal(t, 1, dataset.Diagnostics.UnparsedDates)
	assert.Equal(t, 1, dataset.Diagnostics.UncoercibleValues)

	// undated records first, then the one rescued by the date column
	last := dataset.Records[2]
	assert.True(t, last.HasDate)
	assert.Equal(t, month(2025, time.March), last.Date)
	assert.Equal(t, "Foo FY2025", last.FiscalMonth)
	assert.Equal(t, models.UnknownCategory, last.Category)
	assert.True(t, last.Amount.IsZero())
}

func TestNormalize_DoesNotMutateTable(t *testing.T) {
	table := models.NewRawTable("acv.csv", "FISCAL_MONTH_NAME", "Architecture", "Sum of ACV_BOOKINGS_AMT_USD")
	table.AddRow("Jul FY2025", " Cloud ", "$1,000")

	_, err := newTestNormalizer(nil).Normalize(models.DatasetACV, table)
	require.NoError(t, err)

	assert.Equal(t, " Cloud ", table.Rows[0][1])
	assert.Equal(t, "$1,000", table.Rows[0][2])
}

func TestNormalize_NilTable(t *testing.T) {
	_, err := newTestNormalizer(nil).Normalize(models.DatasetACV, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeEmptyInput))
}

func TestNormalize_NumericCells(t *testing.T) {
	table := models.NewRawTable("programmatic", "Date", "Architecture", "Sum of Bookings")
	table.AddRow(45505.0, "Cloud", 1250.5) // 2024-08-01 as a spreadsheet serial
	table.AddRow(month(2024, time.September), "Cloud", 10)

	dataset, err := newTestNormalizer(nil).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)

	assert.Equal(t, month(2024, time.August), dataset.Records[0].Date)
	assert.True(t, dataset.Records[0].Amount.Equal(decimal.RequireFromString("1250.5")))
	assert.Equal(t, month(2024, time.September), dataset.Records[1].Date)
}

func TestNormalize_Overrides(t *testing.T) {
	config := DefaultConfig()
	config.Overrides[models.FieldValue] = []string{"Net USD"}
	config.Overrides[models.FieldCategory] = []string{"Segment"}

	table := models.NewRawTable("custom.csv", "Date", "Sum of Bookings", "Net USD", "Segment")
	table.AddRow("2024-10-01", "999", "42", "Enterprise")

	dataset, err := newTestNormalizer(config).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)

	assert.Equal(t, "Net USD", dataset.Column(models.FieldValue).Column)
	assert.Equal(t, "Segment", dataset.Column(models.FieldCategory).Column)
	assert.True(t, dataset.Records[0].Amount.Equal(decimal.NewFromInt(42)))
}

func TestNormalize_CustomCalendar(t *testing.T) {
	calendar, err := fiscal.NewCalendar(time.January)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Calendar = calendar

	table := models.NewRawTable("tcv.csv", "Date", "Sum of Bookings")
	table.AddRow("2024-08-01", "1")

	dataset, err := newTestNormalizer(config).Normalize(models.DatasetTCV, table)
	require.NoError(t, err)
	assert.Equal(t, "Aug FY2024", dataset.Records[0].FiscalMonth)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad start month", func(c *Config) { c.Calendar = fiscal.Calendar{StartMonth: 13} }, true},
		{"blank value column", func(c *Config) { c.ValueColumns[models.DatasetACV] = " " }, true},
		{"unknown kind", func(c *Config) { c.ValueColumns["GMV"] = "x" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleSet_Bind(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		field   models.Field
		want    string
	}{
		{"exact beats fuzzy regardless of position", []string{"Amount", "Sum of Bookings"}, models.FieldValue, "Sum of Bookings"},
		{"first fuzzy match wins", []string{"Amount", "Value"}, models.FieldValue, "Amount"},
		{"fuzzy is case-insensitive", []string{"ARCHITECTURE_GROUP"}, models.FieldCategory, "ARCHITECTURE_GROUP"},
		{"lowercase name falls through to fuzzy", []string{"architecture"}, models.FieldCategory, "architecture"},
		{"second exact fiscal month name", []string{"FiscalMonth"}, models.FieldFiscalMonth, "FiscalMonth"},
		{"column bound to date is not reused for value", []string{"Booking Date"}, models.FieldValue, ""},
		{"time fragment", []string{"CloseTime"}, models.FieldDate, "CloseTime"},
		{"nothing matches", []string{"Region"}, models.FieldValue, ""},
	}

	rules := DefaultRules(ColumnTCVValue)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings := rules.Bind(tt.headers)
			assert.Equal(t, tt.want, bindings[tt.field].Column)
			assert.Equal(t, tt.want != "", bindings[tt.field].Found)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want time.Time
		ok   bool
	}{
		{"iso", "2025-02-14", month(2025, time.February), true},
		{"rfc3339", "2025-02-14T10:00:00Z", month(2025, time.February), true},
		{"us short year", "2/14/25", month(2025, time.February), true},
		{"year month", "2025-02", month(2025, time.February), true},
		{"long month", "February 14, 2025", month(2025, time.February), true},
		{"serial text", "45505", month(2024, time.August), true},
		{"small number is not a date", "12", time.Time{}, false},
		{"blank", "  ", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"garbage", "soon", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.raw, DefaultDateFormats)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
