// Package analyzer compares rolling twelve-month booking totals.
//
// For an end month E the current window covers E-11 through E and the
// reference window covers the twelve months before it, E-23 through E-12.
// ACV and TCV are aggregated independently per window and category; the
// four aggregations share no state and run concurrently.
//
// Example usage:
//
//	a, err := analyzer.New(acv, tcv, nil)
//	result, err := a.Analyze(ctx, "Jul FY2025", []string{"Cloud"})
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"booking-rollup-analyzer/internal/fiscal"
	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

// WindowMonths is the length of each rolling window
const WindowMonths = 12

// Config holds analyzer options
type Config struct {
	Calendar fiscal.Calendar
	// Sequential disables concurrent aggregation
	Sequential bool
	Logger     logger.Logger
	Now        func() time.Time
}

// DefaultConfig returns the default analyzer configuration
func DefaultConfig() *Config {
	return &Config{
		Calendar: fiscal.Default,
		Now:      time.Now,
	}
}

// Analyzer answers window queries over two immutable datasets
type Analyzer struct {
	acv    *models.Dataset
	tcv    *models.Dataset
	config *Config
	logger logger.Logger
}

// New creates an Analyzer. Both datasets are required.
func New(acv, tcv *models.Dataset, config *Config) (*Analyzer, error) {
	if acv == nil {
		return nil, errors.EmptyInputError(models.DatasetACV.String())
	}
	if tcv == nil {
		return nil, errors.EmptyInputError(models.DatasetTCV.String())
	}

	if config == nil {
		config = DefaultConfig()
	}
	if config.Calendar.StartMonth == 0 {
		config.Calendar = fiscal.Default
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Analyzer{
		acv:    acv,
		tcv:    tcv,
		config: config,
		logger: log.WithComponent("analyzer"),
	}, nil
}

// Dataset returns the dataset of the given kind
func (a *Analyzer) Dataset(kind models.DatasetKind) *models.Dataset {
	if kind == models.DatasetTCV {
		return a.tcv
	}
	return a.acv
}

// ListAvailableMonths returns the valid fiscal month labels found in either
// dataset, newest first, without duplicates. Labels that do not parse are
// left out.
func (a *Analyzer) ListAvailableMonths() []string {
	seen := make(map[time.Time]bool)
	var dates []time.Time

	for _, ds := range []*models.Dataset{a.acv, a.tcv} {
		for _, label := range ds.FiscalMonths() {
			date, err := a.config.Calendar.LabelToDate(label)
			if err != nil || seen[date] {
				continue
			}
			seen[date] = true
			dates = append(dates, date)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = a.config.Calendar.DateToLabel(d)
	}
	return labels
}

// ListCategories returns the sorted union of categories of both datasets
func (a *Analyzer) ListCategories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, ds := range []*models.Dataset{a.acv, a.tcv} {
		for _, c := range ds.Categories() {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	sort.Strings(categories)
	return categories
}

// DefaultEndMonth returns the newest available month
func (a *Analyzer) DefaultEndMonth() (string, error) {
	months := a.ListAvailableMonths()
	if len(months) == 0 {
		return "", errors.New(errors.CategoryValidation, errors.CodeEmptyInput, "no valid fiscal months found in either dataset").
			WithSuggestion("check the fiscal month or date column of the input files")
	}
	return months[0], nil
}

// Windows computes the current and reference windows ending at endMonth
func (a *Analyzer) Windows(endMonth string) (current, reference models.Window, err error) {
	cal := a.config.Calendar

	end, err := cal.Parse(endMonth)
	if err != nil {
		return current, reference, errors.LabelError(endMonth, err)
	}

	curStart := cal.Add(end, -(WindowMonths - 1))
	refStart := cal.Add(end, -(2*WindowMonths - 1))
	refEnd := cal.Add(end, -WindowMonths)

	current = models.Window{
		Start:      cal.Date(curStart),
		End:        cal.Date(end),
		StartLabel: curStart.String(),
		EndLabel:   end.String(),
	}
	reference = models.Window{
		Start:      cal.Date(refStart),
		End:        cal.Date(refEnd),
		StartLabel: refStart.String(),
		EndLabel:   refEnd.String(),
	}
	return current, reference, nil
}

// Analyze aggregates both datasets over the current and reference windows
// ending at endMonth. A nil or empty filter selects every category; names in
// the filter that do not occur simply contribute nothing.
func (a *Analyzer) Analyze(ctx context.Context, endMonth string, filter []string) (*models.AnalysisResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	op := logger.NewOperationLogger("analyze", a.logger).WithFields(logger.Fields{
		"run_id":    runID,
		"end_month": endMonth,
	})

	current, reference, err := a.Windows(endMonth)
	if err != nil {
		op.Error(err, "Invalid end month")
		return nil, err
	}
	selected := normalizeFilter(filter)
	op.WithField("categories", len(selected)).Step("windows resolved")

	result := &models.AnalysisResult{
		RunID:       runID,
		GeneratedAt: a.config.Now().UTC(),
		Current:     current,
		Reference:   reference,
		Period: models.PeriodInfo{
			CurrentStart:         current.Start.Format("2006-01"),
			CurrentEnd:           current.End.Format("2006-01"),
			ReferenceStart:       reference.Start.Format("2006-01"),
			ReferenceEnd:         reference.End.Format("2006-01"),
			CurrentStartFiscal:   current.StartLabel,
			CurrentEndFiscal:     current.EndLabel,
			ReferenceStartFiscal: reference.StartLabel,
			ReferenceEndFiscal:   reference.EndLabel,
			SelectedCategories:   selected,
		},
	}

	// reference membership is [refStart, curStart) so the windows never overlap
	tasks := []struct {
		slot    **models.Aggregation
		dataset *models.Dataset
		period  models.PeriodKind
		from    time.Time
		until   time.Time
	}{
		{&result.ACVCurrent, a.acv, models.PeriodCurrent, current.Start, current.End.AddDate(0, 1, 0)},
		{&result.ACVReference, a.acv, models.PeriodReference, reference.Start, current.Start},
		{&result.TCVCurrent, a.tcv, models.PeriodCurrent, current.Start, current.End.AddDate(0, 1, 0)},
		{&result.TCVReference, a.tcv, models.PeriodReference, reference.Start, current.Start},
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.config.Sequential {
		g.SetLimit(1)
	}
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			agg, err := a.aggregateSafely(gctx, task.dataset, task.period, task.from, task.until, selected)
			if err != nil {
				return err
			}
			*task.slot = agg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		op.Error(err, "Analysis aborted")
		return nil, errors.WrapIfNeeded(err, errors.CategoryAnalysis, errors.CodeProcessingError, "analysis aborted")
	}

	for _, agg := range []*models.Aggregation{result.ACVCurrent, result.ACVReference, result.TCVCurrent, result.TCVReference} {
		if !agg.IsAvailable() {
			op.Warning(fmt.Sprintf("%s %s aggregation unavailable: %s", agg.Dataset, agg.Period, agg.Reason))
		}
	}

	op.WithFields(logger.Fields{
		"current_window":   current.String(),
		"reference_window": reference.String(),
	}).Success("Analysis completed")

	return result, nil
}

// aggregateSafely turns a failure inside one aggregation into an
// unavailable result so the other three still complete. Only context
// cancellation is returned as an error.
func (a *Analyzer) aggregateSafely(ctx context.Context, ds *models.Dataset, period models.PeriodKind, from, until time.Time, selected []string) (agg *models.Aggregation, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logger.Fields{
				"dataset": ds.Kind,
				"period":  period,
				"panic":   fmt.Sprint(r),
			}).Error("Aggregation failed")
			agg = models.UnavailableAggregation(ds.Kind, period, fmt.Sprintf("aggregation failed: %v", r))
			err = nil
		}
	}()

	return aggregate(ctx, ds, period, from, until, selected)
}

// aggregate sums the records with from <= date < until whose category is
// selected. Records are sorted with undated ones first, so the scan starts
// at the first dated record on or after from and stops at until.
func aggregate(ctx context.Context, ds *models.Dataset, period models.PeriodKind, from, until time.Time, selected []string) (*models.Aggregation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ds.HasDates() {
		return models.UnavailableAggregation(ds.Kind, period, "no date or fiscal month column"), nil
	}
	if !ds.HasValues() {
		return models.UnavailableAggregation(ds.Kind, period, "no value column"), nil
	}

	var allowed map[string]bool
	if len(selected) > 0 {
		allowed = make(map[string]bool, len(selected))
		for _, c := range selected {
			allowed[c] = true
		}
	}

	agg := models.NewAggregation(ds.Kind, period)
	records := ds.Records
	start := sort.Search(len(records), func(i int) bool {
		return records[i].HasDate && !records[i].Date.Before(from)
	})

	for i := start; i < len(records); i++ {
		if (i-start)%4096 == 4095 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r := records[i]
		if !r.Date.Before(until) {
			break
		}
		if allowed != nil && !allowed[r.Category] {
			continue
		}
		agg.Add(r.Category, r.Amount)
	}

	return agg, nil
}

// normalizeFilter trims names and drops blanks and duplicates, keeping order
func normalizeFilter(filter []string) []string {
	if len(filter) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(filter))
	var out []string
	for _, c := range filter {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Delta compares a current and a reference amount
func Delta(current, reference decimal.Decimal) models.Delta {
	return models.ComputeDelta(current, reference)
}
