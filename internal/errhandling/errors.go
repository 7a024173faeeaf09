// Package errhandling provides error types, classification, and retry utilities.
// This file defines error categories, classification functions, and helper utilities
// for robust error handling across the survey runtime.
package errhandling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/surveysim/runtime/internal/database"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/pkg/detection"
)

// ErrorCategory represents the type/category of an error.
// Categories help determine the appropriate error handling strategy.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryConfig represents invalid pipeline or module configuration.
	CategoryConfig ErrorCategory = "config"

	// CategoryIO represents file system errors (missing file, permission, size limit).
	CategoryIO ErrorCategory = "io"

	// CategoryData represents problems with table contents (missing columns,
	// non-numeric values, unknown objects).
	CategoryData ErrorCategory = "data"

	// CategoryDatabase represents sqlite errors. Busy, locked and timed-out
	// operations are retryable.
	CategoryDatabase ErrorCategory = "database"

	// CategoryPlugin represents model registry and script failures.
	CategoryPlugin ErrorCategory = "plugin"

	// CategoryCancelled represents context cancellation or deadline expiry.
	CategoryCancelled ErrorCategory = "cancelled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with classification metadata.
// It provides category, retryability status, and contextual information.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Retryable indicates whether the error is transient and can be retried.
	Retryable bool

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// ErrInvalidConfig marks module configuration errors raised at construction time.
var ErrInvalidConfig = errors.New("invalid configuration")

// NewConfigError creates a ClassifiedError for configuration errors.
func NewConfigError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryConfig, Message: message, OriginalErr: originalErr}
}

// NewDataError creates a ClassifiedError for table content errors.
func NewDataError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryData, Message: message, OriginalErr: originalErr}
}

// ClassifyError classifies any error into a ClassifiedError.
// Already classified errors are returned unchanged. Only transient database
// errors and deadline expiry are retryable; unknown errors are not.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category:  CategoryUnknown,
			Retryable: false,
			Message:   "nil error",
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if dbErr := database.GetDatabaseError(err); dbErr != nil {
		return &ClassifiedError{
			Category:    CategoryDatabase,
			Retryable:   dbErr.Retryable,
			Message:     dbErr.Message,
			OriginalErr: err,
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return classify(CategoryCancelled, false, "context canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return classify(CategoryCancelled, true, "deadline exceeded", err)
	case errors.Is(err, detection.ErrMissingColumn):
		return classify(CategoryData, false, err.Error(), err)
	case errors.Is(err, plugin.ErrNotRegistered),
		errors.Is(err, plugin.ErrAlreadyRegistered),
		errors.Is(err, plugin.ErrMissingFunction),
		errors.Is(err, plugin.ErrNotNumeric),
		errors.Is(err, plugin.ErrScriptEmpty),
		errors.Is(err, plugin.ErrScriptTooLong):
		return classify(CategoryPlugin, false, err.Error(), err)
	case errors.Is(err, ErrInvalidConfig):
		return classify(CategoryConfig, false, err.Error(), err)
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, pathutil.ErrFileTooLarge):
		return classify(CategoryIO, false, err.Error(), err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return classify(CategoryIO, false, err.Error(), err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return classify(CategoryConfig, false, err.Error(), err)
	}

	return classify(CategoryUnknown, false, err.Error(), err)
}

func classify(category ErrorCategory, retryable bool, message string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:    category,
		Retryable:   retryable,
		Message:     message,
		OriginalErr: err,
	}
}

// IsRetryable returns true if the error is classified as retryable.
// Nil errors return false.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Retryable
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	return ClassifyError(err).Category
}
