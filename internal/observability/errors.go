// ABOUTME: Structured error context for enhanced error reporting
// ABOUTME: Provides error codes, categories, and slog integration

package observability

import (
	"fmt"
	"log/slog"
)

// Error category constants.
const (
	CategoryTransient = "transient"  // Retryable errors (network, timeout).
	CategoryPermanent = "permanent"  // Non-retryable errors (invalid input).
	CategoryUserError = "user_error" // Errors caused by caller input.
)

// ErrorContext provides structured context for errors.
type ErrorContext struct {
	// Code is a unique error identifier (e.g., "PROVIDER_TIMEOUT").
	Code string `json:"code"`

	// Category classifies the error type.
	Category string `json:"category"`

	// Operation is the operation that failed (e.g., "domainrep_lookup").
	Operation string `json:"operation"`

	// Err is the underlying error if any.
	Err error `json:"-"`
}

// NewErrorContext creates a new error context.
func NewErrorContext(code, category, operation string) *ErrorContext {
	return &ErrorContext{
		Code:      code,
		Category:  category,
		Operation: operation,
	}
}

// WithError attaches the underlying error.
func (e *ErrorContext) WithError(err error) *ErrorContext {
	e.Err = err
	return e
}

// IsRetryable returns true if the error is retryable.
func (e *ErrorContext) IsRetryable() bool {
	return e.Category == CategoryTransient
}

// Error implements the error interface.
func (e *ErrorContext) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Category, e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Operation)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ErrorContext) Unwrap() error {
	return e.Err
}

// LogValue implements slog.LogValuer for structured logging.
func (e *ErrorContext) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("category", e.Category),
		slog.String("operation", e.Operation),
		slog.Bool("is_retryable", e.IsRetryable()),
	}

	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}
