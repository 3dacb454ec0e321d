// Package fiscal converts between fiscal month labels and calendar dates.
//
// A fiscal month label has the form "<Mon> FY<Year>", for example "Aug FY2025".
// Fiscal years are named after the calendar year in which they end, so with
// the default August start FY2025 runs from August 2024 through July 2025.
// The same rollover month is applied in both directions, which keeps
// DateToLabel(LabelToDate(l)) == l for every valid label.
//
// Example usage:
//
//	date, err := fiscal.LabelToDate("Aug FY2025") // 2024-08-01
//	label := fiscal.DateToLabel(date)           // "Aug FY2025"
//	start, err := fiscal.SubtractMonths("Jul FY2025", 11) // "Aug FY2025"
package fiscal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidLabel is wrapped by every label parsing failure.
var ErrInvalidLabel = errors.New("invalid fiscal month label")

// Fallback values for callers that choose to substitute a default instead of
// handling the error. They are signals of invalid input, not real months.
var (
	FallbackDate  = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	FallbackLabel = "Jul FY2024"
)

// LabelError describes why a label could not be parsed.
type LabelError struct {
	Label  string
	Reason string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidLabel.Error(), e.Label, e.Reason)
}

func (e *LabelError) Unwrap() error {
	return ErrInvalidLabel
}

// Month identifies a single fiscal month.
type Month struct {
	FiscalYear int
	Month      time.Month
}

// String returns the canonical label, e.g. "Jun FY2025".
func (m Month) String() string {
	return fmt.Sprintf("%s FY%d", abbrev(m.Month), m.FiscalYear)
}

// Calendar holds the fiscal year convention.
type Calendar struct {
	StartMonth time.Month
}

// Default is the August-start calendar used by the package-level functions.
var Default = Calendar{StartMonth: time.August}

// NewCalendar creates a calendar whose fiscal year begins in startMonth.
func NewCalendar(startMonth time.Month) (Calendar, error) {
	if startMonth < time.January || startMonth > time.December {
		return Calendar{}, fmt.Errorf("invalid fiscal start month: %d", startMonth)
	}
	return Calendar{StartMonth: startMonth}, nil
}

// Order returns the twelve months in fiscal order, starting with StartMonth.
func (c Calendar) Order() []time.Month {
	order := make([]time.Month, 12)
	for i := range order {
		order[i] = c.monthAt(i)
	}
	return order
}

// Parse decodes a label into a Month.
func (c Calendar) Parse(label string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(label), " ")
	if len(parts) != 2 {
		return Month{}, &LabelError{Label: label, Reason: "expected \"<Mon> FY<Year>\""}
	}

	if !strings.HasPrefix(parts[1], "FY") {
		return Month{}, &LabelError{Label: label, Reason: fmt.Sprintf("fiscal year %q must start with FY", parts[1])}
	}

	year, err := strconv.Atoi(parts[1][2:])
	if err != nil || year <= 0 {
		return Month{}, &LabelError{Label: label, Reason: fmt.Sprintf("invalid fiscal year %q", parts[1][2:])}
	}

	month, ok := monthsByAbbrev[parts[0]]
	if !ok {
		return Month{}, &LabelError{Label: label, Reason: fmt.Sprintf("unknown month %q", parts[0])}
	}

	return Month{FiscalYear: year, Month: month}, nil
}

// FromDate returns the fiscal month containing t.
func (c Calendar) FromDate(t time.Time) Month {
	year := t.Year()
	if c.rollsOver(t.Month()) {
		year++
	}
	return Month{FiscalYear: year, Month: t.Month()}
}

// Date returns the first day of the calendar month for m, in UTC.
func (c Calendar) Date(m Month) time.Time {
	year := m.FiscalYear
	if c.rollsOver(m.Month) {
		year--
	}
	return time.Date(year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Add moves m by n fiscal months; negative n moves backwards.
func (c Calendar) Add(m Month, n int) Month {
	index := m.FiscalYear*12 + c.position(m.Month) + n
	year, pos := floorDiv(index, 12)
	return Month{FiscalYear: year, Month: c.monthAt(pos)}
}

// LabelToDate parses a label and returns the first day of its calendar month.
func (c Calendar) LabelToDate(label string) (time.Time, error) {
	m, err := c.Parse(label)
	if err != nil {
		return time.Time{}, err
	}
	return c.Date(m), nil
}

// DateToLabel returns the label of the fiscal month containing t.
func (c Calendar) DateToLabel(t time.Time) string {
	return c.FromDate(t).String()
}

// SubtractMonths walks n positions back through the fiscal month ordering,
// decrementing the fiscal year once per wrap.
func (c Calendar) SubtractMonths(label string, n int) (string, error) {
	m, err := c.Parse(label)
	if err != nil {
		return "", err
	}
	return c.Add(m, -n).String(), nil
}

// LabelToDateOr returns fallback when label cannot be parsed.
func (c Calendar) LabelToDateOr(label string, fallback time.Time) time.Time {
	date, err := c.LabelToDate(label)
	if err != nil {
		return fallback
	}
	return date
}

// SubtractMonthsOr returns fallback when label cannot be parsed.
func (c Calendar) SubtractMonthsOr(label string, n int, fallback string) string {
	result, err := c.SubtractMonths(label, n)
	if err != nil {
		return fallback
	}
	return result
}

// IsValid reports whether label parses under this calendar.
func (c Calendar) IsValid(label string) bool {
	_, err := c.Parse(label)
	return err == nil
}

func (c Calendar) rollsOver(m time.Month) bool {
	return c.StartMonth != time.January && m >= c.StartMonth
}

func (c Calendar) position(m time.Month) int {
	return (int(m) - int(c.StartMonth) + 12) % 12
}

func (c Calendar) monthAt(pos int) time.Month {
	return time.Month((int(c.StartMonth)-1+pos)%12 + 1)
}

func floorDiv(a, b int) (int, int) {
	q, r := a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

var monthsByAbbrev = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March, "Apr": time.April,
	"May": time.May, "Jun": time.June, "Jul": time.July, "Aug": time.August,
	"Sep": time.September, "Oct": time.October, "Nov": time.November, "Dec": time.December,
}

func abbrev(m time.Month) string {
	return m.String()[:3]
}

// Package-level helpers bound to the Default calendar.

func ParseLabel(label string) (Month, error) {
	return Default.Parse(label)
}

func LabelToDate(label string) (time.Time, error) {
	return Default.LabelToDate(label)
}

func DateToLabel(t time.Time) string {
	return Default.DateToLabel(t)
}

func SubtractMonths(label string, n int) (string, error) {
	return Default.SubtractMonths(label, n)
}
