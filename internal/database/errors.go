package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Error categories for database operations
const (
	CategoryConnection  = "connection"
	CategoryQuery       = "query"
	CategoryConstraint  = "constraint"
	CategoryTransaction = "transaction"
	CategoryBusy        = "busy"
	CategoryTimeout     = "timeout"
	CategoryUnknown     = "unknown"
)

// DatabaseError represents a categorized database error with context.
//
//nolint:revive // DatabaseError is a clear, descriptive name that doesn't stutter in practice
type DatabaseError struct {
	Category    string // Error category (connection, query, constraint, etc.)
	Operation   string // Operation that failed (open, create, insert, select, commit)
	Message     string // User-friendly error message
	Query       string // The statement that caused the error, truncated
	OriginalErr error  // The underlying database error
	Retryable   bool   // Whether the error is transient and can be retried
}

func (e *DatabaseError) Error() string {
	msg := fmt.Sprintf("database %s error in %s: %s", e.Category, e.Operation, e.Message)
	if e.OriginalErr != nil {
		msg += fmt.Sprintf(" (original: %v)", e.OriginalErr)
	}
	return msg
}

func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns true if the error is transient and can be retried.
func (e *DatabaseError) IsRetryable() bool {
	return e.Retryable
}

// NewDatabaseError creates a new database error with the given details.
func NewDatabaseError(category, operation, message string, originalErr error, retryable bool) *DatabaseError {
	return &DatabaseError{
		Category:    category,
		Operation:   operation,
		Message:     message,
		OriginalErr: originalErr,
		Retryable:   retryable,
	}
}

// ClassifyDatabaseError classifies a raw database error into a DatabaseError.
// sqlite3 result codes are used when present; other errors fall back to
// message matching.
func ClassifyDatabaseError(err error, operation, query string) *DatabaseError {
	if err == nil {
		return nil
	}
	var existing *DatabaseError
	if errors.As(err, &existing) {
		return existing
	}

	dbErr := classify(err, operation)
	dbErr.Query = sanitizeQuery(query)
	return dbErr
}

func classify(err error, operation string) *DatabaseError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewDatabaseError(CategoryTimeout, operation, "operation timed out", err, true)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy:
			return NewDatabaseError(CategoryBusy, operation, "database is busy", err, true)
		case sqlite3.ErrLocked:
			return NewDatabaseError(CategoryBusy, operation, "database table is locked", err, true)
		case sqlite3.ErrConstraint:
			return NewDatabaseError(CategoryConstraint, operation, constraintMessage(sqliteErr.ExtendedCode), err, false)
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrPerm, sqlite3.ErrReadonly:
			return NewDatabaseError(CategoryConnection, operation, "cannot open or write database file", err, false)
		case sqlite3.ErrFull, sqlite3.ErrIoErr:
			return NewDatabaseError(CategoryConnection, operation, "disk I/O error", err, false)
		case sqlite3.ErrError:
			return NewDatabaseError(CategoryQuery, operation, sqliteErr.Error(), err, false)
		}
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "database is locked"), strings.Contains(errMsg, "database is busy"):
		return NewDatabaseError(CategoryBusy, operation, "database is busy", err, true)
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "timed out"):
		return NewDatabaseError(CategoryTimeout, operation, "operation timed out", err, true)
	case strings.Contains(errMsg, "constraint"):
		return NewDatabaseError(CategoryConstraint, operation, "constraint violation", err, false)
	case strings.Contains(errMsg, "syntax error"), strings.Contains(errMsg, "no such table"), strings.Contains(errMsg, "no such column"):
		return NewDatabaseError(CategoryQuery, operation, err.Error(), err, false)
	}
	return NewDatabaseError(CategoryUnknown, operation, err.Error(), err, false)
}

func constraintMessage(code sqlite3.ErrNoExtended) string {
	switch code {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "unique constraint violation: duplicate value exists"
	case sqlite3.ErrConstraintNotNull:
		return "not-null constraint violation: required field is null"
	case sqlite3.ErrConstraintForeignKey:
		return "foreign key constraint violation"
	case sqlite3.ErrConstraintCheck:
		return "check constraint violation: value does not meet requirements"
	}
	return "constraint violation"
}

// sanitizeQuery truncates very long statements for logging.
func sanitizeQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "... (truncated)"
	}
	return query
}

// GetDatabaseError extracts the DatabaseError from an error chain.
func GetDatabaseError(err error) *DatabaseError {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	return nil
}
