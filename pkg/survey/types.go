// Package survey provides public types for survey post-processing pipelines.
// This package is intended to be importable by external projects that need
// to build or inspect pipeline configurations and execution results.
package survey

import "time"

// Pipeline represents a complete post-processing pipeline configuration:
// one detection source, an ordered chain of cuts and adjustments, and one sink.
type Pipeline struct {
	// ID is the unique identifier for this pipeline
	ID string `json:"id"`

	// Name is the human-readable name of the pipeline
	Name string `json:"name"`

	// Description provides additional context about the pipeline
	Description string `json:"description,omitempty"`

	// Version is the pipeline configuration version
	Version string `json:"version"`

	// Input defines the detection table source
	Input *ModuleConfig `json:"input"`

	// Filters is the ordered list of cuts and brightness adjustments
	Filters []ModuleConfig `json:"filters,omitempty"`

	// Output defines the detection table sink
	Output *ModuleConfig `json:"output"`

	// ErrorHandling configures retry and failure behavior
	ErrorHandling *ErrorHandling `json:"errorHandling,omitempty"`

	// CreatedAt is when the pipeline was loaded
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ModuleConfig represents the configuration for a pipeline module.
type ModuleConfig struct {
	// Type identifies the module type (e.g., "csv", "magnitudeLimit", "sqlite")
	Type string `json:"type"`

	// Config contains the module-specific configuration
	Config map[string]interface{} `json:"config"`
}

// ErrorHandling defines how errors should be handled during execution.
type ErrorHandling struct {
	// RetryCount is the number of retry attempts for retryable output errors
	RetryCount int `json:"retryCount"`

	// RetryDelay is the initial delay between retries in milliseconds
	RetryDelay int `json:"retryDelay"`

	// OnError specifies the action on unrecoverable errors ("stop", "continue")
	OnError string `json:"onError"`
}

// ExecutionResult represents the result of a pipeline execution.
type ExecutionResult struct {
	// RunID uniquely identifies this execution
	RunID string `json:"runId"`

	// PipelineID is the ID of the executed pipeline
	PipelineID string `json:"pipelineId"`

	// Status is the execution status ("success", "partial", "error")
	Status string `json:"status"`

	// StartedAt is when execution started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when execution completed
	CompletedAt time.Time `json:"completedAt"`

	// RecordsRead is the number of detections produced by the input module
	RecordsRead int `json:"recordsRead"`

	// RecordsRetained is the number of detections that survived all filters
	RecordsRetained int `json:"recordsRetained"`

	// RecordsWritten is the number of detections accepted by the output module
	RecordsWritten int `json:"recordsWritten"`

	// FiltersSkipped lists the filter indexes that failed and were passed
	// through under the "continue" error strategy
	FiltersSkipped []int `json:"filtersSkipped,omitempty"`

	// DryRunPreview describes what the output would have written (dry-run only)
	DryRunPreview *OutputPreview `json:"dryRunPreview,omitempty"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`
}

// OutputPreview describes the write an output module would perform.
type OutputPreview struct {
	ModuleType  string   `json:"moduleType"`
	Destination string   `json:"destination"`
	RecordCount int      `json:"recordCount"`
	Columns     []string `json:"columns"`
}

// RecordsDropped returns how many detections the filter chain removed.
func (r *ExecutionResult) RecordsDropped() int {
	if r == nil {
		return 0
	}
	return r.RecordsRead - r.RecordsRetained
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Module is the module where the error occurred
	Module string `json:"module,omitempty"`

	// Category is the error classification (config, io, data, database, plugin, unknown)
	Category string `json:"category,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
