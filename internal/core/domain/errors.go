package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrorCode represents a categorized error code for backtest operations
type ErrorCode string

const (
	// Input validation errors
	CodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Calculation errors
	CodeNumericalInstability ErrorCode = "NUMERICAL_INSTABILITY"

	// Advisory, the result is still returned
	CodeDegenerateCluster       ErrorCode = "DEGENERATE_CLUSTER"
	CodeIndependenceUnavailable ErrorCode = "INDEPENDENCE_UNAVAILABLE"

	// External dependency errors
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeStorageFailure   ErrorCode = "STORAGE_FAILURE"
	CodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ErrorCategory groups related error types
type ErrorCategory string

const (
	CategoryValidation  ErrorCategory = "VALIDATION"
	CategoryCalculation ErrorCategory = "CALCULATION"
	CategoryAdvisory    ErrorCategory = "ADVISORY"
	CategoryDependency  ErrorCategory = "DEPENDENCY"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrInsufficientData     = &BacktestError{Code: CodeInsufficientData}
	ErrInvalidParameter     = &BacktestError{Code: CodeInvalidParameter}
	ErrNumericalInstability = &BacktestError{Code: CodeNumericalInstability}
	ErrDegenerateCluster    = &BacktestError{Code: CodeDegenerateCluster}
	ErrNotFound             = &BacktestError{Code: CodeNotFound}
	ErrStorageFailure       = &BacktestError{Code: CodeStorageFailure}
	ErrCacheUnavailable     = &BacktestError{Code: CodeCacheUnavailable}

	ErrIndependenceUnavailable = &BacktestError{Code: CodeIndependenceUnavailable}
)

// BacktestError carries the violated precondition so a caller can diagnose
// the failure without re-running the computation.
type BacktestError struct {
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Severity  ErrorSeverity `json:"severity"`
	Category  ErrorCategory `json:"category"`
	Details   ErrorDetails  `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
	Cause     error         `json:"-"`
}

// ErrorDetails contains specific information about the error
type ErrorDetails struct {
	Operation   string         `json:"operation"`
	Expected    map[string]any `json:"expected,omitempty"`
	Actual      map[string]any `json:"actual,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`
}

// NewBacktestError creates a new BacktestError with severity and category derived from the code
func NewBacktestError(code ErrorCode, message string, operation string) *BacktestError {
	return &BacktestError{
		Code:      code,
		Message:   message,
		Severity:  determineSeverity(code),
		Category:  determineCategory(code),
		Timestamp: time.Now(),
		Details: ErrorDetails{
			Operation: operation,
		},
	}
}

// Error implements the error interface
func (e *BacktestError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s (operation: %s)", e.Severity, e.Code, e.Message, e.Details.Operation)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *BacktestError) Unwrap() error {
	return e.Cause
}

// Is matches any BacktestError carrying the same code
func (e *BacktestError) Is(target error) bool {
	var other *BacktestError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithActual records the offending value
func (e *BacktestError) WithActual(key string, value any) *BacktestError {
	if e.Details.Actual == nil {
		e.Details.Actual = make(map[string]any)
	}
	e.Details.Actual[key] = sanitize(value)
	return e
}

// WithExpected records what the operation required
func (e *BacktestError) WithExpected(key string, value any) *BacktestError {
	if e.Details.Expected == nil {
		e.Details.Expected = make(map[string]any)
	}
	e.Details.Expected[key] = sanitize(value)
	return e
}

// WithConstraint records the violated constraint
func (e *BacktestError) WithConstraint(key string, value any) *BacktestError {
	if e.Details.Constraints == nil {
		e.Details.Constraints = make(map[string]any)
	}
	e.Details.Constraints[key] = sanitize(value)
	return e
}

// WithCause wraps an underlying error
func (e *BacktestError) WithCause(cause error) *BacktestError {
	e.Cause = cause
	return e
}

// IsTemporary reports whether retrying could succeed. Computations are
// deterministic, so only dependency failures qualify.
func (e *BacktestError) IsTemporary() bool {
	switch e.Code {
	case CodeStorageFailure, CodeCacheUnavailable:
		return true
	default:
		return false
	}
}

// IsAdvisory reports whether the error accompanies a usable result
func (e *BacktestError) IsAdvisory() bool {
	return e.Category == CategoryAdvisory
}

// IsAdvisory reports whether err is an advisory BacktestError
func IsAdvisory(err error) bool {
	var be *BacktestError
	return errors.As(err, &be) && be.IsAdvisory()
}

// AsBacktestError extracts a BacktestError from an error chain
func AsBacktestError(err error) (*BacktestError, bool) {
	var be *BacktestError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func determineSeverity(code ErrorCode) ErrorSeverity {
	switch code {
	case CodeNumericalInstability, CodeStorageFailure:
		return SeverityHigh
	case CodeCacheUnavailable:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func determineCategory(code ErrorCode) ErrorCategory {
	switch code {
	case CodeInsufficientData, CodeInvalidParameter, CodeNotFound:
		return CategoryValidation
	case CodeNumericalInstability:
		return CategoryCalculation
	case CodeDegenerateCluster, CodeIndependenceUnavailable:
		return CategoryAdvisory
	default:
		return CategoryDependency
	}
}

// non-finite floats cannot be JSON encoded
func sanitize(value any) any {
	if f, ok := value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return value
}

// Convenience constructors for common error scenarios

// NewInsufficientDataError creates an error for series too short for the operation
func NewInsufficientDataError(operation string, required, provided int) *BacktestError {
	return NewBacktestError(CodeInsufficientData,
		fmt.Sprintf("insufficient observations for %s", operation), operation).
		WithExpected("min_observations", required).
		WithActual("provided_observations", provided)
}

// NewInvalidParameterError creates an error for an out-of-domain input
func NewInvalidParameterError(operation, name string, value any, constraint string) *BacktestError {
	return NewBacktestError(CodeInvalidParameter,
		fmt.Sprintf("invalid %s for %s", name, operation), operation).
		WithActual(name, value).
		WithConstraint(name, constraint)
}

// NewNumericalInstabilityError creates an error for a statistic that is not a finite number
func NewNumericalInstabilityError(operation string, statistic float64) *BacktestError {
	return NewBacktestError(CodeNumericalInstability,
		fmt.Sprintf("%s produced a non-finite statistic", operation), operation).
		WithActual("statistic", statistic)
}

// NewDegenerateClusterWarning flags an independence test run on a series without breaches
func NewDegenerateClusterWarning(operation string, observations int) *BacktestError {
	return NewBacktestError(CodeDegenerateCluster,
		"no exceedances observed; independence result is not informative", operation).
		WithActual("observations", observations).
		WithActual("exceedances", 0)
}

// NewIndependenceUnavailableWarning flags a series where every period
// breached, so only the coverage test could be computed
func NewIndependenceUnavailableWarning(operation string, observations int) *BacktestError {
	return NewBacktestError(CodeIndependenceUnavailable,
		"every period breached; independence and conditional coverage results are unavailable", operation).
		WithActual("observations", observations).
		WithActual("exceedances", observations)
}

// NewNotFoundError creates an error for a missing stored resource
func NewNotFoundError(resource, id string) *BacktestError {
	return NewBacktestError(CodeNotFound,
		fmt.Sprintf("%s not found", resource), "get_"+resource).
		WithActual("id", id)
}

// NewStorageError wraps a persistence failure
func NewStorageError(operation string, cause error) *BacktestError {
	return NewBacktestError(CodeStorageFailure,
		fmt.Sprintf("storage failure during %s", operation), operation).
		WithCause(cause)
}

// NewCacheError wraps a cache failure
func NewCacheError(operation string, cause error) *BacktestError {
	return NewBacktestError(CodeCacheUnavailable,
		fmt.Sprintf("cache unavailable during %s", operation), operation).
		WithCause(cause)
}
