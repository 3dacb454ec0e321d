package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultDateFormats are tried in order when a date column holds text
var DefaultDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-01-2006",
	"2006/01/02",
	"2006.01.02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01",
}

// Spreadsheet serial day numbers accepted as dates: 1954-10-03 to 2119-01-08
const (
	minSerialDate = 20000
	maxSerialDate = 80000
)

// parseDate reads a cell as a calendar date truncated to its month
func parseDate(raw interface{}, formats []string) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return monthStart(v), true
	case float64:
		return serialDate(v)
	case int:
		return serialDate(float64(v))
	case int64:
		return serialDate(float64(v))
	case string:
		return parseDateText(v, formats)
	default:
		return time.Time{}, false
	}
}

func parseDateText(s string, formats []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return monthStart(t), true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serialDate(f)
	}

	return time.Time{}, false
}

func serialDate(f float64) (time.Time, bool) {
	if f < minSerialDate || f > maxSerialDate {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return monthStart(t), true
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
