// Package normalizer turns loaded booking tables into canonical datasets.
//
// Columns are discovered with ordered rules per field: exact well-known
// names first, then case-insensitive fragments. A field with no matching
// column never fails the load. It is recorded in the dataset diagnostics and
// the affected records fall back to defaults (no date, "Unknown" category,
// zero amount), so one poorly shaped export degrades only its own results.
package normalizer

import (
	"fmt"
	"sort"
	"strings"

	"booking-rollup-analyzer/internal/coerce"
	"booking-rollup-analyzer/internal/fiscal"
	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

// Config controls column discovery and date interpretation
type Config struct {
	Calendar     fiscal.Calendar
	ValueColumns map[models.DatasetKind]string
	// Overrides lists extra exact column names tried before the default rules
	Overrides   map[models.Field][]string
	DateFormats []string
}

// DefaultConfig returns the configuration for the standard booking exports
func DefaultConfig() *Config {
	return &Config{
		Calendar: fiscal.Default,
		ValueColumns: map[models.DatasetKind]string{
			models.DatasetACV: ColumnACVValue,
			models.DatasetTCV: ColumnTCVValue,
		},
		Overrides:   map[models.Field][]string{},
		DateFormats: DefaultDateFormats,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Calendar.StartMonth < 1 || c.Calendar.StartMonth > 12 {
		return fmt.Errorf("invalid fiscal start month: %d", c.Calendar.StartMonth)
	}
	for kind, column := range c.ValueColumns {
		if !kind.IsValid() {
			return fmt.Errorf("unknown dataset kind: %s", kind)
		}
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("value column for %s cannot be empty", kind)
		}
	}
	return nil
}

// Rules returns the column rules for a dataset kind
func (c *Config) Rules(kind models.DatasetKind) RuleSet {
	valueColumn := c.ValueColumns[kind]
	if valueColumn == "" {
		valueColumn = DefaultConfig().ValueColumns[kind]
	}
	rules := DefaultRules(valueColumn)
	for field, columns := range c.Overrides {
		rules = rules.Override(field, columns...)
	}
	return rules
}

// Normalizer builds datasets from raw tables
type Normalizer struct {
	config *Config
	logger logger.Logger
}

// New creates a Normalizer. A nil config uses DefaultConfig and a nil
// logger uses the global logger.
func New(config *Config, log logger.Logger) *Normalizer {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.DateFormats) == 0 {
		config.DateFormats = DefaultDateFormats
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Normalizer{
		config: config,
		logger: log.WithComponent("normalizer"),
	}
}

// Normalize builds a dataset with the default configuration
func Normalize(kind models.DatasetKind, table *models.RawTable) (*models.Dataset, error) {
	return New(nil, nil).Normalize(kind, table)
}

// Normalize resolves the columns of table and converts every row to a
// BookingRecord. The table is not modified. Only a nil table is an error.
func (n *Normalizer) Normalize(kind models.DatasetKind, table *models.RawTable) (*models.Dataset, error) {
	if table == nil {
		return nil, errors.EmptyInputError(kind.String())
	}

	log := n.logger.WithFields(logger.Fields{"dataset": kind, "source": table.Source})

	bindings := n.config.Rules(kind).Bind(table.Headers)
	dataset := &models.Dataset{
		Kind:    kind,
		Source:  table.Source,
		Records: make([]models.BookingRecord, 0, table.Len()),
		Columns: bindings,
	}

	for _, field := range fieldOrder {
		b := bindings[field]
		if b.Found {
			log.WithFields(logger.Fields{"field": field, "column": b.Column, "rule": b.Rule}).Debug("Bound column")
			continue
		}
		// a date is still derivable from the fiscal month column and vice versa
		if field == models.FieldFiscalMonth && bindings[models.FieldDate].Found ||
			field == models.FieldDate && bindings[models.FieldFiscalMonth].Found {
			continue
		}
		missing := errors.MissingColumnError(kind.String(), string(field), table.Headers)
		dataset.Diagnostics.MissingColumns = append(dataset.Diagnostics.MissingColumns, field)
		dataset.Diagnostics.Messages = append(dataset.Diagnostics.Messages, missing.Error())
		log.WithField("field", field).Warn(missing.Message)
	}

	index := func(field models.Field) int {
		if b := bindings[field]; b.Found {
			return table.ColumnIndex(b.Column)
		}
		return -1
	}
	monthCol := index(models.FieldFiscalMonth)
	dateCol := index(models.FieldDate)
	categoryCol := index(models.FieldCategory)
	valueCol := index(models.FieldValue)

	for row := 0; row < table.Len(); row++ {
		record := models.BookingRecord{
			Line:     row + 2,
			Category: models.UnknownCategory,
		}

		if monthCol >= 0 {
			record.FiscalMonth = table.CellString(row, monthCol)
			if date, err := n.config.Calendar.LabelToDate(record.FiscalMonth); err == nil {
				record.Date = date
				record.HasDate = true
			} else if record.FiscalMonth != "" {
				dataset.Diagnostics.InvalidLabels++
				log.WithFields(logger.Fields{"line": record.Line, "label": record.FiscalMonth}).Debug("Invalid fiscal month label")
			}
		}

		if !record.HasDate && dateCol >= 0 {
			if date, ok := parseDate(table.Cell(row, dateCol), n.config.DateFormats); ok {
				record.Date = date
				record.HasDate = true
				if record.FiscalMonth == "" {
					record.FiscalMonth = n.config.Calendar.DateToLabel(date)
				}
			} else if table.CellString(row, dateCol) != "" {
				dataset.Diagnostics.UnparsedDates++
			}
		}

		if categoryCol >= 0 {
			if c := table.CellString(row, categoryCol); c != "" {
				record.Category = c
			}
		}

		if valueCol >= 0 {
			raw := table.Cell(row, valueCol)
			amount, err := coerce.ParseStrict(raw)
			if err != nil {
				if raw != nil {
					dataset.Diagnostics.UncoercibleValues++
				}
				amount = coerce.Value(raw)
			}
			record.Amount = amount
		}

		dataset.Records = append(dataset.Records, record)
	}

	// undated records sort first so dated ones stay in calendar order
	sort.SliceStable(dataset.Records, func(i, j int) bool {
		a, b := dataset.Records[i], dataset.Records[j]
		if a.HasDate != b.HasDate {
			return !a.HasDate
		}
		return a.Date.Before(b.Date)
	})

	if dataset.Diagnostics.InvalidLabels > 0 || dataset.Diagnostics.UnparsedDates > 0 || dataset.Diagnostics.UncoercibleValues > 0 {
		log.WithFields(logger.Fields{
			"invalid_labels":     dataset.Diagnostics.InvalidLabels,
			"unparsed_dates":     dataset.Diagnostics.UnparsedDates,
			"uncoercible_values": dataset.Diagnostics.UncoercibleValues,
		}).Warn("Some rows could not be fully interpreted")
	}

	log.WithFields(logger.Fields{"records": dataset.Len()}).Info("Normalized dataset")
	return dataset, nil
}
