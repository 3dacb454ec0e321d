package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"booking-rollup-analyzer/cmd/analyzer/config"
	"booking-rollup-analyzer/internal/normalizer"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

const envPrefix = "ANALYZER"

var (
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries the state shared by the subcommands of one root command
type app struct {
	v        *viper.Viper
	cfgFile  string
	envFile  string
	settings *config.Settings
	logger   logger.Logger
}

// NewRootCommand builds the command tree with its own viper instance
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "analyzer",
		Short: "Rolling 12-month ACV/TCV booking analyzer",
		Long: `Analyzer compares booking totals of the twelve fiscal months ending at a
chosen month with the twelve months before them. ACV and TCV exports are
read from CSV, XLSX or XLS files and summarized per architecture category.

Settings can also come from a YAML file (--config), ANALYZER_* environment
variables, or a .env file.

Examples:
  analyzer analyze --acv-file acv.xlsx --tcv-file tcv.xlsx
  analyzer analyze -a acv.csv -t tcv.csv --end-month "Jul FY2025" --category Cloud,Security
  analyzer analyze -a acv.csv -t tcv.csv --output-format xlsx --output-file report.xlsx
  analyzer months -a acv.csv -t tcv.csv
  analyzer version`,
		Version:       getVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML, optional)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded if present")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output")
	flags.String(config.KeyLogFormat, "text", "log format: text, json")
	flags.String(config.KeyLogFile, "", "write logs to a file instead of stderr")
	flags.StringP(config.KeyACVFile, "a", "", "path to the ACV bookings file (csv, xlsx, xls)")
	flags.StringP(config.KeyTCVFile, "t", "", "path to the TCV bookings file (csv, xlsx, xls)")
	flags.Int(config.KeyFiscalStartMonth, 8, "calendar month that opens the fiscal year (1-12)")
	flags.String(config.KeyACVValueColumn, normalizer.ColumnACVValue, "name of the ACV amount column")
	flags.String(config.KeyTCVValueColumn, normalizer.ColumnTCVValue, "name of the TCV amount column")
	flags.String(config.KeyDelimiter, ",", "CSV field delimiter")
	flags.String(config.KeySheet, "", "worksheet to read from XLSX inputs (default: first sheet)")

	for _, key := range []string{
		config.KeyVerbose, config.KeyLogFormat, config.KeyLogFile,
		config.KeyACVFile, config.KeyTCVFile, config.KeyFiscalStartMonth,
		config.KeyACVValueColumn, config.KeyTCVValueColumn,
		config.KeyDelimiter, config.KeySheet,
	} {
		a.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(newAnalyzeCommand(a))
	root.AddCommand(newMonthsCommand(a))
	root.AddCommand(newCategoriesCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the root command. Interrupts cancel the running analysis.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return NewRootCommand().ExecuteContext(ctx)
}

// initialize reads the env file, the config file and the environment, then
// installs the global logger
func (a *app) initialize() error {
	if err := loadEnvFile(a.envFile); err != nil {
		return err
	}

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", a.cfgFile, err).
				WithSuggestion("Check that the config file exists and is valid YAML")
		}
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	config.SetDefaults(a.v)

	settings, err := config.FromViper(a.v)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "settings", nil, err).
			WithSuggestion("Use 'analyzer --help' to see valid option values")
	}
	verbose = settings.Verbose

	log, err := logger.NewLogger(config.CreateLoggerConfig(settings))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logger", settings.LogFormat, err)
	}
	logger.SetGlobalLogger(log)

	a.settings = settings
	a.logger = log.WithComponent("cli")
	if a.cfgFile != "" {
		a.logger.WithField("config", a.v.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

// loadEnvFile loads path into the process environment. A missing file is
// not an error and variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", path, err).
			WithSuggestion("Check the KEY=value syntax of the env file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
