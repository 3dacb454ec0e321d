package cmd

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"booking-rollup-analyzer/cmd/analyzer/config"
	"booking-rollup-analyzer/internal/analyzer"
	"booking-rollup-analyzer/internal/models"
	"booking-rollup-analyzer/internal/normalizer"
	"booking-rollup-analyzer/internal/parsers"
	"booking-rollup-analyzer/pkg/errors"
	"booking-rollup-analyzer/pkg/logger"
)

// session holds the analyzer built from both input files
type session struct {
	analyzer *analyzer.Analyzer
	acv      *models.Dataset
	tcv      *models.Dataset
}

func (s *session) datasets() []*models.Dataset {
	return []*models.Dataset{s.acv, s.tcv}
}

// openSession loads and normalizes both booking files concurrently and
// builds an analyzer over them
func openSession(ctx context.Context, settings *config.Settings, log logger.Logger) (*session, error) {
	if settings.ACVFile == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, config.KeyACVFile, nil, nil).
			WithSuggestion("Pass --acv-file or set ANALYZER_ACV_FILE")
	}
	if settings.TCVFile == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, config.KeyTCVFile, nil, nil).
			WithSuggestion("Pass --tcv-file or set ANALYZER_TCV_FILE")
	}
	if err := validateFileExists(settings.ACVFile); err != nil {
		return nil, err
	}
	if err := validateFileExists(settings.TCVFile); err != nil {
		return nil, err
	}

	loadConfig, err := config.CreateLoadConfig(settings)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "load", nil, err)
	}
	normConfig, err := config.CreateNormalizerConfig(settings)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "normalizer", nil, err)
	}

	loader := parsers.NewLoader(loadConfig, log)
	norm := normalizer.New(normConfig, log)

	s := &session{}
	g, gctx := errgroup.WithContext(ctx)
	for _, input := range []struct {
		kind models.DatasetKind
		path string
		slot **models.Dataset
	}{
		{models.DatasetACV, settings.ACVFile, &s.acv},
		{models.DatasetTCV, settings.TCVFile, &s.tcv},
	} {
		input := input
		g.Go(func() error {
			table, err := loader.LoadFile(gctx, input.path)
			if err != nil {
				return err
			}
			dataset, err := norm.Normalize(input.kind, table)
			if err != nil {
				return err
			}
			*input.slot = dataset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analyzerConfig, err := config.CreateAnalyzerConfig(settings, log)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "analyzer", nil, err)
	}
	s.analyzer, err = analyzer.New(s.acv, s.tcv, analyzerConfig)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func validateFileExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFormat, path, nil).
			WithSuggestion("Expected a file, got a directory")
	}
	return nil
}
