// Package cli provides CLI output formatting and display functions.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/surveysim/runtime/internal/config"
)

// Exit codes returned by the surveysim command.
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

// Stdout and Stderr are where results and errors are printed.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// PrintParseErrors prints parse errors to stderr.
func PrintParseErrors(errors []config.ParseError, verbose bool) {
	fmt.Fprintln(Stderr, "✗ Parse errors:")
	for _, err := range errors {
		printSingleParseError(err, verbose)
	}
}

// printSingleParseError prints a single parse error with location information.
func printSingleParseError(err config.ParseError, verbose bool) {
	location := formatErrorLocation(err.Path, err.Line, err.Column)

	if location != "" {
		fmt.Fprintf(Stderr, "  %s: %s\n", location, err.Message)
	} else {
		fmt.Fprintf(Stderr, "  %s\n", err.Message)
	}

	if verbose && err.Type != "" {
		fmt.Fprintf(Stderr, "    Type: %s\n", err.Type)
	}
}

// formatErrorLocation formats the error location string (path:line:column).
func formatErrorLocation(path string, line, column int) string {
	if path == "" {
		return ""
	}

	location := path
	if line > 0 {
		location += fmt.Sprintf(":%d", line)
		if column > 0 {
			location += fmt.Sprintf(":%d", column)
		}
	}
	return location
}

// PrintValidationErrors prints validation errors to stderr.
func PrintValidationErrors(errors []config.ValidationError, verbose, quiet bool) {
	fmt.Fprintln(Stderr, "✗ Validation errors:")
	for _, err := range errors {
		printSingleValidationError(err, verbose)
	}
	if !quiet && !verbose {
		fmt.Fprintln(Stderr, "")
		fmt.Fprintln(Stderr, "Hint: Use --verbose for detailed error information")
	}
}

// printSingleValidationError prints a single validation error.
func printSingleValidationError(err config.ValidationError, verbose bool) {
	path := err.Path
	if path == "" {
		path = "/"
	}

	if !verbose {
		msg := err.Message
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(Stderr, "  %s: %s\n", path, msg)
		return
	}

	fmt.Fprintf(Stderr, "  %s:\n", path)
	fmt.Fprintf(Stderr, "    Message: %s\n", err.Message)
	if err.Type != "" {
		fmt.Fprintf(Stderr, "    Type: %s\n", err.Type)
	}
}

// ExitCodeFor maps a config.Load result to the process exit code.
func ExitCodeFor(result *config.Result) int {
	switch {
	case result == nil:
		return ExitRuntimeError
	case len(result.ParseErrors) > 0:
		return ExitParseError
	case len(result.ValidationErrors) > 0:
		return ExitValidationError
	default:
		return ExitSuccess
	}
}

// PrintLoadErrors reports whatever went wrong while loading a configuration
// and returns the exit code to use. A nil error yields ExitSuccess.
func PrintLoadErrors(result *config.Result, err error, verbose, quiet bool) int {
	if err == nil {
		return ExitSuccess
	}
	code := ExitCodeFor(result)
	switch code {
	case ExitParseError:
		PrintParseErrors(result.ParseErrors, verbose)
	case ExitValidationError:
		PrintValidationErrors(result.ValidationErrors, verbose, quiet)
	default:
		// Schema-valid documents that still fail conversion.
		code = ExitValidationError
		fmt.Fprintf(Stderr, "✗ Invalid configuration: %v\n", err)
	}
	return code
}
