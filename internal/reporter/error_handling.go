package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with error classification and
// fallbacks: a failed structured format is retried as console output, and a
// file that cannot be written is replaced by a backup file next to it.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely generates a report with error handling and fallbacks
func (srg *SafeReportGenerator) GenerateReportSafely(result *models.AnalysisResult, writer io.Writer, datasets ...*models.Dataset) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.generateWithFallback(result, writer, datasets); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.Info("Report generation completed successfully")
	return nil
}

// GenerateToFile creates path and writes the report into it. When the file
// cannot be created a backup path is tried before giving up.
func (srg *SafeReportGenerator) GenerateToFile(result *models.AnalysisResult, path string, datasets ...*models.Dataset) (string, error) {
	file, err := os.Create(path)
	if err != nil {
		if !isFileError(err) {
			return "", errors.FileError(errors.CodeFilePermission, path, err)
		}
		backupPath := generateBackupPath(path)
		srg.logger.WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   backupPath,
		}).Warn("Cannot create output file, using backup location")

		file, err = os.Create(backupPath)
		if err != nil {
			return "", errors.FileError(errors.CodeFilePermission, path, err).
				WithSuggestion("Check that the output directory exists and is writable")
		}
		path = backupPath
	}
	defer file.Close()

	if err := srg.GenerateReportSafely(result, file, datasets...); err != nil {
		return "", err
	}
	return path, nil
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(result *models.AnalysisResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Run an analysis before generating a report")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	for _, agg := range []*models.Aggregation{result.ACVCurrent, result.ACVReference, result.TCVCurrent, result.TCVReference} {
		if agg == nil {
			return errors.ValidationError(
				errors.CodeMissingField,
				"aggregation",
				nil,
				nil,
			).WithSuggestion("The analysis result is incomplete")
		}
	}

	return nil
}

// generateWithFallback attempts to generate the report with fallback strategies
func (srg *SafeReportGenerator) generateWithFallback(result *models.AnalysisResult, writer io.Writer, datasets []*models.Dataset) error {
	err := srg.GenerateReport(result, writer, datasets...)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(result, writer, datasets, err)
	}

	return wrapGenerationError(err)
}

// generateWithFormatFallback retries the report as console output
func (srg *SafeReportGenerator) generateWithFormatFallback(result *models.AnalysisResult, writer io.Writer, datasets []*models.Dataset, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer, datasets...); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return nil
}

// wrapGenerationError wraps generation errors with context
func wrapGenerationError(err error) error {
	if analyzerErr, ok := errors.AsAnalyzerError(err); ok {
		return analyzerErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

// generateBackupPath puts the backup in the working directory when the
// original directory is not usable
func generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return fmt.Sprintf("%s_backup%s", name, ext)
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
