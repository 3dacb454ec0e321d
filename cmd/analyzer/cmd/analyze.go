package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"booking-rollup-analyzer/cmd/analyzer/config"
	"booking-rollup-analyzer/internal/reporter"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare the last twelve fiscal months with the twelve before",
		Long: `Analyze sums ACV and TCV bookings per architecture category over the
twelve fiscal months ending at --end-month (the current window) and over the
twelve months before that (the reference window), then reports absolute and
percent changes. TCV totals are labeled with a size from XS to XL.

When --end-month is omitted the newest month found in either file is used.

Examples:
  # Latest twelve months, all categories
  analyzer analyze --acv-file acv.xlsx --tcv-file tcv.xlsx

  # A fixed end month and two categories
  analyzer analyze -a acv.csv -t tcv.csv --end-month "Jul FY2025" --category Cloud,Security

  # Machine-readable output
  analyzer analyze -a acv.csv -t tcv.csv --output-format json --output-file report.json`,
		RunE: a.runAnalyze,
	}

	flags := cmd.Flags()
	flags.StringP(config.KeyEndMonth, "e", "", "last fiscal month of the current window, e.g. \"Jul FY2025\"")
	flags.StringSliceP(config.KeyCategories, "c", nil, "categories to include (default: all)")
	flags.StringP(config.KeyOutputFormat, "f", "console", "output format: console, json, csv, yaml, xlsx")
	flags.StringP(config.KeyOutputFile, "o", "", "output file path (default: stdout)")
	flags.Bool(config.KeySortByAmount, false, "order categories by current amount instead of name")
	flags.Bool(config.KeySequential, false, "run the four aggregations one after another")

	for _, key := range []string{
		config.KeyEndMonth, config.KeyCategories, config.KeyOutputFormat,
		config.KeyOutputFile, config.KeySortByAmount, config.KeySequential,
	} {
		a.v.BindPFlag(key, flags.Lookup(key))
	}

	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	settings := a.settings

	if err := settings.ValidateOutput(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, config.KeyOutputFile, settings.OutputFile, err).
			WithSuggestion("Pass --output-file or choose a text output format")
	}

	op := logger.NewOperationLogger("analyze_command", a.logger).WithFields(logger.Fields{
		"acv_file": settings.ACVFile,
		"tcv_file": settings.TCVFile,
		"format":   settings.OutputFormat,
	})

	s, err := openSession(ctx, settings, a.logger)
	if err != nil {
		op.Error(err, "Failed to load bookings")
		return err
	}

	endMonth := settings.EndMonth
	if endMonth == "" {
		endMonth, err = s.analyzer.DefaultEndMonth()
		if err != nil {
			return err
		}
		a.logger.WithField("end_month", endMonth).Info("No end month given, using the newest available month")
	}

	result, err := s.analyzer.Analyze(ctx, endMonth, settings.Categories)
	if err != nil {
		op.Error(err, "Analysis failed")
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(config.CreateReportConfig(settings), a.logger)
	if err != nil {
		return err
	}

	if settings.OutputFile == "" {
		if err := generator.GenerateReportSafely(result, cmd.OutOrStdout(), s.datasets()...); err != nil {
			return err
		}
	} else {
		written, err := generator.GenerateToFile(result, settings.OutputFile, s.datasets()...)
		if err != nil {
			return err
		}
		if written != settings.OutputFile {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write to %s, report saved to %s\n", settings.OutputFile, written)
		}
	}

	if settings.Verbose {
		out := cmd.ErrOrStderr()
		fmt.Fprintf(out, "\nAnalysis %s completed.\n", result.RunID)
		fmt.Fprintf(out, "Current window:   %s\n", result.Current)
		fmt.Fprintf(out, "Reference window: %s\n", result.Reference)
		for _, ds := range s.datasets() {
			fmt.Fprintf(out, "%s: %d records from %s\n", ds.Kind, ds.Len(), ds.Source)
		}
	}

	op.Success("Analysis command completed")
	return nil
}
