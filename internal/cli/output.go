package cli

import (
	"fmt"
	"strings"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/survey"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintExecutionResult displays the pipeline execution result.
func PrintExecutionResult(result *survey.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(Stderr, "✗ No execution result available")
		return
	}

	if err != nil {
		fmt.Fprintln(Stderr, "✗ Pipeline execution failed")
		if result.Error != nil {
			if result.Error.Module != "" {
				fmt.Fprintf(Stderr, "  Module: %s\n", result.Error.Module)
			}
			fmt.Fprintf(Stderr, "  Error: %s\n", result.Error.Message)
			if opts.Verbose {
				fmt.Fprintf(Stderr, "  Code: %s\n", result.Error.Code)
				if result.Error.Category != "" {
					fmt.Fprintf(Stderr, "  Category: %s\n", result.Error.Category)
				}
			}
		}
		return
	}

	if opts.Quiet {
		return
	}

	if result.Status == "partial" {
		fmt.Fprintln(Stdout, "⚠ Pipeline completed with skipped filters")
		fmt.Fprintf(Stdout, "  Skipped filters: %s\n", joinInts(result.FiltersSkipped))
	} else {
		fmt.Fprintln(Stdout, "✓ Pipeline executed successfully")
	}
	fmt.Fprintf(Stdout, "  Status: %s\n", result.Status)
	fmt.Fprintf(Stdout, "  Detections read: %d\n", result.RecordsRead)
	fmt.Fprintf(Stdout, "  Detections retained: %d\n", result.RecordsRetained)
	if !opts.DryRun {
		fmt.Fprintf(Stdout, "  Detections written: %d\n", result.RecordsWritten)
	}
	if opts.Verbose {
		fmt.Fprintf(Stdout, "  Run ID: %s\n", result.RunID)
		fmt.Fprintf(Stdout, "  %s\n", logger.FormatMetricsHuman(resultMetrics(result)))
	}

	if opts.DryRun {
		PrintDryRunPreview(result.DryRunPreview, opts.Verbose)
	}
}

// PrintDryRunPreview displays what the output module would have written.
func PrintDryRunPreview(preview *survey.OutputPreview, verbose bool) {
	fmt.Fprintln(Stdout)
	if preview == nil {
		fmt.Fprintln(Stdout, "ℹ️  Output skipped (dry-run mode)")
		return
	}

	fmt.Fprintln(Stdout, "📋 Dry-Run Preview (what would have been written):")
	fmt.Fprintf(Stdout, "  Output: %s\n", preview.ModuleType)
	fmt.Fprintf(Stdout, "  Destination: %s\n", preview.Destination)
	fmt.Fprintf(Stdout, "  Detections: %d\n", preview.RecordCount)
	if verbose || len(preview.Columns) <= 10 {
		fmt.Fprintf(Stdout, "  Columns: %s\n", strings.Join(preview.Columns, ", "))
	} else {
		fmt.Fprintf(Stdout, "  Columns: %s, ... (%d more)\n",
			strings.Join(preview.Columns[:10], ", "), len(preview.Columns)-10)
	}
	fmt.Fprintln(Stdout)
	fmt.Fprintln(Stdout, "ℹ️  Nothing was written (dry-run mode)")
}

// PrintConfigSummary prints the survey name and version if available.
func PrintConfigSummary(data map[string]interface{}) {
	if data == nil {
		return
	}

	s, ok := data["survey"].(map[string]interface{})
	if !ok {
		return
	}

	if name, ok := s["name"].(string); ok {
		fmt.Fprintf(Stdout, "  Survey: %s\n", name)
	}
	if version, ok := s["version"].(string); ok {
		fmt.Fprintf(Stdout, "  Version: %s\n", version)
	}
	if filters, ok := s["filters"].([]interface{}); ok {
		fmt.Fprintf(Stdout, "  Filters: %d\n", len(filters))
	}
}

// resultMetrics derives the run totals available from a result.
func resultMetrics(result *survey.ExecutionResult) logger.ExecutionMetrics {
	m := logger.ExecutionMetrics{
		TotalDuration:   result.CompletedAt.Sub(result.StartedAt),
		RecordsRead:     result.RecordsRead,
		RecordsRetained: result.RecordsRetained,
		RecordsWritten:  result.RecordsWritten,
	}
	if m.RecordsRead > 0 && m.TotalDuration > 0 {
		m.RecordsPerSecond = float64(m.RecordsRead) / m.TotalDuration.Seconds()
	}
	return m
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
