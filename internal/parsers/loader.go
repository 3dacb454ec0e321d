// Package parsers loads booking exports into untyped tables.
//
// Three file formats are supported and selected by extension:
//   - .csv  comma separated text, validated as UTF-8
//   - .xlsx Office Open XML workbooks (first sheet unless configured)
//   - .xls  legacy BIFF workbooks (first sheet)
//
// Every format produces a models.RawTable: the first non-empty row becomes
// the header and the remaining non-empty rows become data rows of string
// cells. Interpreting the columns is left to the normalizer.
//
// Example usage:
//
//	loader := NewLoader(DefaultLoadConfig(), nil)
//	table, err := loader.LoadFile(ctx, "acv.xlsx")
package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

// Format is a supported input file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// utf8BOM is prepended by spreadsheet tools when exporting CSV
const utf8BOM = "\ufeff"

// DetectFormat maps a file extension to a Format
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", errors.FileError(errors.CodeUnsupportedFormat, path, nil)
	}
}

// LoadConfig holds configuration for loading tabular files
type LoadConfig struct {
	Delimiter        rune   `json:"delimiter"`
	Comment          rune   `json:"comment"`
	TrimLeadingSpace bool   `json:"trim_leading_space"`
	SkipEmptyRows    bool   `json:"skip_empty_rows"`
	ValidateEncoding bool   `json:"validate_encoding"`
	Sheet            string `json:"sheet,omitempty"`
	XLSCharset       string `json:"xls_charset"`
}

// DefaultLoadConfig returns a configuration with sensible defaults
func DefaultLoadConfig() *LoadConfig {
	return &LoadConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
		XLSCharset:       "utf-8",
	}
}

// Validate checks the loader configuration
func (c *LoadConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == utf8.RuneError {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	if c.Comment != 0 && c.Comment == c.Delimiter {
		return fmt.Errorf("comment character cannot equal the delimiter")
	}
	return nil
}

// Loader reads CSV, XLSX and XLS files into raw tables
type Loader struct {
	config *LoadConfig
	logger logger.Logger
}

// NewLoader creates a Loader. A nil config uses DefaultLoadConfig and a nil
// logger uses the global logger.
func NewLoader(config *LoadConfig, log logger.Logger) *Loader {
	if config == nil {
		config = DefaultLoadConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	log = log.WithComponent("loader")
	log.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"validate_encoding": config.ValidateEncoding,
		"sheet":             config.Sheet,
	}).Debug("Created loader")

	return &Loader{config: config, logger: log}
}

// LoadFile reads the file at path, choosing the format from its extension
func (l *Loader) LoadFile(ctx context.Context, path string) (*models.RawTable, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logger.Fields{"file_path": path, "format": format}).Debug("Opening file")

	file, err := os.Open(path)
	if err != nil {
		l.logger.WithError(err).WithField("file_path", path).Error("Failed to open file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	return l.Load(ctx, path, file, format)
}

// Load reads a table of the given format from r. name is used for
// diagnostics and as the table source.
func (l *Loader) Load(ctx context.Context, name string, r io.Reader, format Format) (*models.RawTable, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = l.readCSV(ctx, name, data)
	case FormatXLSX:
		rows, err = l.readXLSX(name, data)
	case FormatXLS:
		rows, err = l.readXLS(name, data)
	default:
		return nil, errors.FileError(errors.CodeUnsupportedFormat, name, nil)
	}
	if err != nil {
		return nil, err
	}

	table, err := l.toTable(ctx, name, rows)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logger.Fields{
		"source":  name,
		"format":  format,
		"columns": len(table.Headers),
		"rows":    table.Len(),
	}).Info("Loaded table")

	return table, nil
}

func (l *Loader) readCSV(ctx context.Context, name string, data []byte) ([][]string, error) {
	if l.config.ValidateEncoding {
		if err := validateEncoding(data, name); err != nil {
			l.logger.WithError(err).WithField("source", name).Error("File encoding validation failed")
			return nil, err
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = l.config.Delimiter
	reader.Comment = l.config.Comment
	reader.TrimLeadingSpace = l.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_loading", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, errors.ParseError(errors.CodeInvalidFormat, name, line, "", "", err)
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func (l *Loader) readXLSX(name string, data []byte) ([][]string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}
	defer book.Close()

	sheet := l.config.Sheet
	if sheet == "" {
		sheet = book.GetSheetName(0)
	}
	if sheet == "" {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, fmt.Errorf("workbook has no sheets"))
	}

	// raw values keep date cells as serial numbers instead of display text
	rows, err := book.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err).
			WithContext("sheet", sheet).
			WithSuggestion(fmt.Sprintf("available sheets: %s", strings.Join(book.GetSheetList(), ", ")))
	}

	l.logger.WithFields(logger.Fields{"source": name, "sheet": sheet}).Debug("Read workbook sheet")
	return rows, nil
}

func (l *Loader) readXLS(name string, data []byte) ([][]string, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), l.config.XLSCharset)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, fmt.Errorf("workbook has no sheets"))
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

// toTable turns raw rows into a RawTable: the first non-empty row is the header
func (l *Loader) toTable(ctx context.Context, name string, rows [][]string) (*models.RawTable, error) {
	headerAt := -1
	for i, row := range rows {
		if !isEmptyRecord(row) {
			headerAt = i
			break
		}
	}
	if headerAt == -1 {
		l.logger.WithField("source", name).Error("File is empty or contains no header")
		return nil, errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
			WithContext("file", name).
			WithSuggestion("ensure the file contains a header row")
	}

	headers := append([]string(nil), rows[headerAt]...)
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	table := models.NewRawTable(name, headers...)

	for i := headerAt + 1; i < len(rows); i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.InternalError(errors.CodeUnexpectedError, "table_building", err)
			}
		}

		row := rows[i]
		if l.config.SkipEmptyRows && isEmptyRecord(row) {
			l.logger.WithField("line_number", i+1).Debug("Skipping empty record")
			continue
		}

		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		table.AddRow(cells...)
	}

	return table, nil
}

// validateEncoding checks that the first lines are valid UTF-8
func validateEncoding(data []byte, name string) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				name,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	return nil
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
