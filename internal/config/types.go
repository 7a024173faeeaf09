package config

import (
	"fmt"
	"strings"
)

// Configuration formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Parse error types.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// ParseResult contains the result of decoding a configuration document.
type ParseResult struct {
	// Data is the decoded top-level mapping
	Data map[string]interface{}
	// Errors contains any parsing errors encountered
	Errors []ParseError
	// FilePath is the source file (empty when parsed from memory)
	FilePath string
	// Format is the decoded format (json, yaml)
	Format string
}

// IsValid returns true if no parsing errors occurred.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError is a decoding failure with its location when known.
type ParseError struct {
	Path    string
	Line    int // 1-based, 0 if unknown
	Column  int // 1-based, 0 if unknown
	Offset  int64
	Message string
	// Type is one of ErrorTypeIO, ErrorTypeSyntax, ErrorTypeFormat
	Type string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&sb, ", column %d", e.Column)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult contains the result of validating a configuration.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is a schema violation.
type ValidationError struct {
	// Path is the JSON pointer of the offending value (e.g. "/survey/filters/0/limit")
	Path string
	// Type is the violated keyword family (required, type, enum, range, ...)
	Type    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result combines parsing and validation of one configuration.
type Result struct {
	Data             map[string]interface{}
	ParseErrors      []ParseError
	ValidationErrors []ValidationError
	FilePath         string
	Format           string
}

// IsValid returns true if no errors occurred.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors returns parsing then validation errors as one slice.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}
