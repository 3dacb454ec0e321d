package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAnalyzerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeInvalidLabel,
			message:    "invalid label",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "analysis error",
			category:   CategoryAnalysis,
			code:       CodeAggregationFailed,
			message:    "aggregation failed",
			cause:      nil,
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AnalyzerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestAnalyzerErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/acv.csv").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/acv.csv" {
		t.Errorf("expected file context, got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestDomainErrorConstructors(t *testing.T) {
	t.Run("LabelError", func(t *testing.T) {
		cause := errors.New("unknown month")
		err := LabelError("Foo FY2025", cause)

		if err.Code != CodeInvalidLabel || err.Category != CategoryParse {
			t.Errorf("unexpected classification %s/%s", err.Category, err.Code)
		}
		if err.Context["label"] != "Foo FY2025" {
			t.Errorf("expected label context, got %v", err.Context["label"])
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause to be reachable with errors.Is")
		}
	})

	t.Run("MissingColumnError", func(t *testing.T) {
		err := MissingColumnError("ACV", "value", []string{"Region", "Quarter"})

		if err.Code != CodeMissingColumn {
			t.Errorf("expected missing column code, got %s", err.Code)
		}
		if err.Context["dataset"] != "ACV" || err.Context["field"] != "value" {
			t.Errorf("unexpected context %v", err.Context)
		}
		if err.Suggestion != "available columns: Region, Quarter" {
			t.Errorf("unexpected suggestion %q", err.Suggestion)
		}
	})

	t.Run("EmptyInputError", func(t *testing.T) {
		err := EmptyInputError("TCV")

		if err.Code != CodeEmptyInput {
			t.Errorf("expected empty input code, got %s", err.Code)
		}
		if err.GetExitCode() != 3 {
			t.Errorf("expected exit code 3, got %d", err.GetExitCode())
		}
	})

	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/data/tcv.csv", cause)

		if err.Context["file_path"] != "/data/tcv.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeInvalidFormat, "acv.csv", 10, "Date", "31/31/2024", nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["line"] != 10 {
			t.Errorf("expected line context, got %v", err.Context["line"])
		}
	})
}

func TestAsAnalyzerError(t *testing.T) {
	analyzerErr := New(CategoryFile, CodeFileNotFound, "test")
	wrapped := fmt.Errorf("loading: %w", analyzerErr)
	genericErr := errors.New("generic error")

	if extracted, ok := AsAnalyzerError(wrapped); !ok || extracted != analyzerErr {
		t.Error("expected AsAnalyzerError to extract through fmt wrapping")
	}
	if _, ok := AsAnalyzerError(genericErr); ok {
		t.Error("expected AsAnalyzerError to return false for generic error")
	}
	if _, ok := AsAnalyzerError(nil); ok {
		t.Error("expected AsAnalyzerError to return false for nil")
	}

	if !IsAnalyzerError(analyzerErr) || IsAnalyzerError(genericErr) {
		t.Error("IsAnalyzerError returned the wrong answer")
	}
	if !HasCode(wrapped, CodeFileNotFound) || HasCode(wrapped, CodeInvalidLabel) {
		t.Error("HasCode returned the wrong answer")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	analyzerErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(analyzerErr, CategoryParse, CodeInvalidFormat, "wrapped") != analyzerErr {
		t.Error("expected WrapIfNeeded to return original AnalyzerError")
	}

	result := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result.Cause != genericErr || result.Category != CategoryParse {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryAnalysis, 5},
		{CategoryInternal, 5},
		{"unknown", 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}
