package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error. Hint carries an
// actionable remediation for the calling layer; Context carries the
// offending identifiers (dataset id, column name, parameter).
type AppError struct {
	Code    string
	Message string
	Hint    string
	Context map[string]any
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithHint attaches a remediation hint.
func (e *AppError) WithHint(hint string) *AppError {
	e.Hint = hint
	return e
}

// WithContext attaches one context key.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Hint:    appErr.Hint,
			Context: appErr.Context,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Error codes, one per failure kind in the engine's taxonomy.
const (
	CodeDatasetNotFound  = "DATASET_NOT_FOUND"
	CodeColumnNotFound   = "COLUMN_NOT_FOUND"
	CodeTypeMismatch     = "TYPE_MISMATCH"
	CodeExpressionError  = "EXPRESSION_ERROR"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeInferenceError   = "INFERENCE_ERROR"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeFileIOError      = "FILE_IO_ERROR"
	CodeRunNotFound      = "RUN_NOT_FOUND"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Common error constructors

func DatasetNotFound(datasetID string, known []string) *AppError {
	msg := fmt.Sprintf("dataset %q not found", datasetID)
	hint := "ingest the dataset first"
	if len(known) > 0 {
		hint = "ingest the dataset first, or use one of the known handles"
	}
	return New(CodeDatasetNotFound, msg).
		WithHint(hint).
		WithContext("dataset_id", datasetID).
		WithContext("known_dataset_ids", known)
}

func ColumnNotFound(column string, available []string) *AppError {
	return Newf(CodeColumnNotFound, "column %q not found in dataset", column).
		WithHint("check the column name against the dataset schema").
		WithContext("column", column).
		WithContext("available_columns", available)
}

func TypeMismatch(column, want, got string) *AppError {
	return Newf(CodeTypeMismatch, "column %q must be %s, got %s", column, want, got).
		WithContext("column", column)
}

func ExpressionError(expr string, cause error) *AppError {
	return &AppError{
		Code:    CodeExpressionError,
		Message: fmt.Sprintf("invalid expression %q", expr),
		Hint:    "expressions may reference columns, literals, arithmetic, comparison and boolean operators only",
		Context: map[string]any{"expression": expr},
		Cause:   cause,
	}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func InferenceError(message string) *AppError {
	return New(CodeInferenceError, message)
}

func InvalidParameter(param, reason string) *AppError {
	return Newf(CodeInvalidParameter, "invalid %s: %s", param, reason).
		WithContext("parameter", param)
}

func FileIO(message string, cause error) *AppError {
	return &AppError{Code: CodeFileIOError, Message: message, Cause: cause}
}

func RunNotFound(runID string) *AppError {
	return Newf(CodeRunNotFound, "run %q not found", runID).
		WithHint("save the run before fetching or comparing it").
		WithContext("run_id", runID)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
