package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAnalysis      ErrorCategory = "analysis"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound      ErrorCode = "file_not_found"
	CodeFilePermission    ErrorCode = "file_permission"
	CodeFileCorrupted     ErrorCode = "file_corrupted"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"

	// Parse errors
	CodeInvalidLabel  ErrorCode = "invalid_label"
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeEmptyInput   ErrorCode = "empty_input"
	CodeMissingField ErrorCode = "missing_field"
	CodeOutOfRange   ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Analysis errors
	CodeAggregationFailed ErrorCode = "aggregation_failed"
	CodeProcessingError   ErrorCode = "processing_error"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// AnalyzerError is the base error type for all application errors
type AnalyzerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AnalyzerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *AnalyzerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AnalyzerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryAnalysis, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AnalyzerError) WithContext(key string, value interface{}) *AnalyzerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AnalyzerError) WithSuggestion(suggestion string) *AnalyzerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AnalyzerError
func New(category ErrorCategory, code ErrorCode, message string) *AnalyzerError {
	return &AnalyzerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AnalyzerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AnalyzerError {
	if err == nil {
		return nil
	}

	return &AnalyzerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *AnalyzerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AnalyzerError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and try exporting it again"
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported file format: %s", path)
		suggestion = "provide a .csv, .xlsx or .xls file"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *AnalyzerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing column '%s' in file %s", column, file)
		suggestion = "verify the file has the expected columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	return newOrWrap(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// LabelError creates an error for a malformed fiscal month label
func LabelError(label string, err error) *AnalyzerError {
	return newOrWrap(err, CategoryParse, CodeInvalidLabel, fmt.Sprintf("invalid fiscal month label '%s'", label)).
		WithSuggestion("use the form '<Mon> FY<Year>', for example 'Jul FY2025'").
		WithContext("label", label)
}

// MissingColumnError creates an error for a field whose column could not be
// discovered. It is normally recorded as a diagnostic rather than returned.
func MissingColumnError(dataset string, field string, headers []string) *AnalyzerError {
	return New(CategoryParse, CodeMissingColumn, fmt.Sprintf("no %s column found in %s dataset", field, dataset)).
		WithSuggestion(fmt.Sprintf("available columns: %s", strings.Join(headers, ", "))).
		WithContext("dataset", dataset).
		WithContext("field", field)
}

// EmptyInputError creates an error for an absent dataset
func EmptyInputError(dataset string) *AnalyzerError {
	return New(CategoryValidation, CodeEmptyInput, fmt.Sprintf("%s dataset is required", dataset)).
		WithSuggestion("provide both the ACV and the TCV booking files").
		WithContext("dataset", dataset)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *AnalyzerError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return newOrWrap(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AnalyzerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return newOrWrap(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// AnalysisError creates an analysis-related error
func AnalysisError(code ErrorCode, operation string, err error) *AnalyzerError {
	var message string
	var suggestion string

	switch code {
	case CodeAggregationFailed:
		message = fmt.Sprintf("aggregation failed during %s", operation)
		suggestion = "check the value and category columns of the input files"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the input data and try again"
	default:
		message = fmt.Sprintf("analysis error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return newOrWrap(err, CategoryAnalysis, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *AnalyzerError {
	message := fmt.Sprintf("internal error during %s", operation)
	suggestion := "try again or contact support if the problem persists"
	if code == CodeUnexpectedError {
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return newOrWrap(err, CategoryInternal, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// Utility functions

// IsAnalyzerError checks if an error is an AnalyzerError
func IsAnalyzerError(err error) bool {
	_, ok := err.(*AnalyzerError)
	return ok
}

// AsAnalyzerError extracts an AnalyzerError from an error chain
func AsAnalyzerError(err error) (*AnalyzerError, bool) {
	var analyzerErr *AnalyzerError
	if errors.As(err, &analyzerErr) {
		return analyzerErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	analyzerErr, ok := AsAnalyzerError(err)
	return ok && analyzerErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already an AnalyzerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AnalyzerError {
	if err == nil {
		return nil
	}

	if analyzerErr, ok := AsAnalyzerError(err); ok {
		return analyzerErr
	}

	return Wrap(err, category, code, message)
}
