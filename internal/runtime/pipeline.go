// Package runtime provides the pipeline execution engine.
// It orchestrates the execution of Input, Filter, and Output modules.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/factory"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/pkg/detection"
	"github.com/surveysim/runtime/pkg/survey"
)

// Error codes for pipeline execution errors
const (
	ErrCodeInputFailed  = "INPUT_FAILED"
	ErrCodeFilterFailed = "FILTER_FAILED"
	ErrCodeOutputFailed = "OUTPUT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// Execution status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// Common errors
var (
	// ErrNilPipeline is returned when pipeline configuration is nil
	ErrNilPipeline = errors.New("pipeline configuration is nil")

	// ErrNilInputModule is returned when input module is nil
	ErrNilInputModule = errors.New("input module is nil")

	// ErrNilOutputModule is returned when output module is nil
	ErrNilOutputModule = errors.New("output module is nil")
)

// Executor runs one pipeline: Input → Filters → Output.
//
// The Executor only talks to modules through their interfaces, so modules
// can be developed and tested without the runtime.
type Executor struct {
	inputModule   input.Module
	filterModules []filter.Module
	filterTypes   []string
	outputModule  output.Module
	dryRun        bool
	onError       errhandling.OnErrorStrategy
}

// NewExecutorWithModules creates an executor from already constructed modules.
// filterModules may be nil. In dry-run mode outputModule may be nil.
func NewExecutorWithModules(
	inputModule input.Module,
	filterModules []filter.Module,
	outputModule output.Module,
	dryRun bool,
) *Executor {
	return &Executor{
		inputModule:   inputModule,
		filterModules: filterModules,
		outputModule:  outputModule,
		dryRun:        dryRun,
		onError:       errhandling.OnErrorStop,
	}
}

// NewExecutorFromPipeline builds every module of pipeline through the
// registry. Modules already opened are closed if a later one fails.
func NewExecutorFromPipeline(ctx context.Context, pipeline *survey.Pipeline, dryRun bool) (*Executor, error) {
	if pipeline == nil {
		return nil, ErrNilPipeline
	}

	in, err := factory.CreateInputModule(ctx, pipeline.Input)
	if err != nil {
		return nil, fmt.Errorf("creating input module: %w", err)
	}
	filters, err := factory.CreateFilterModules(pipeline.Filters)
	if err != nil {
		closeQuietly(in)
		return nil, fmt.Errorf("creating filter modules: %w", err)
	}
	out, err := factory.CreateOutputModule(ctx, pipeline.Output, factory.RetryConfigFor(pipeline.ErrorHandling))
	if err != nil {
		closeQuietly(in)
		return nil, fmt.Errorf("creating output module: %w", err)
	}

	e := NewExecutorWithModules(in, filters, out, dryRun)
	e.filterTypes = make([]string, len(pipeline.Filters))
	for i, f := range pipeline.Filters {
		e.filterTypes[i] = f.Type
	}
	if pipeline.ErrorHandling != nil {
		e.onError = errhandling.ParseOnErrorStrategy(pipeline.ErrorHandling.OnError)
	}
	return e, nil
}

// SetOnError sets what happens when a filter fails. OnErrorContinue logs
// the failure and hands the filter's input table to the next stage.
func (e *Executor) SetOnError(strategy errhandling.OnErrorStrategy) {
	e.onError = strategy
}

// stageTimings holds timing measurements for each execution stage
type stageTimings struct {
	inputDuration  time.Duration
	filterDuration time.Duration
	outputDuration time.Duration
}

// Execute runs the pipeline. It returns a result in every case; on failure
// the result carries an ExecutionError and the error is returned as well.
//
// The input module is closed as soon as the table has been read; the output
// module is closed when Execute returns.
func (e *Executor) Execute(ctx context.Context, pipeline *survey.Pipeline) (*survey.ExecutionResult, error) {
	startedAt := time.Now()
	result := &survey.ExecutionResult{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		Status:    StatusError,
	}

	if err := e.validateExecution(pipeline, result); err != nil {
		return result, err
	}
	result.PipelineID = pipeline.ID

	execCtx := e.execContext(result.RunID, pipeline, "")
	logger.LogExecutionStart(execCtx)
	finish := func(err error) (*survey.ExecutionResult, error) {
		result.CompletedAt = time.Now()
		logger.LogExecutionEnd(execCtx, result.Status, result.RecordsWritten, result.CompletedAt.Sub(startedAt))
		return result, err
	}

	if e.outputModule != nil {
		defer e.closeModule(pipeline.ID, "output", e.outputModule)
	}

	var timings stageTimings

	table, err := e.executeInput(ctx, pipeline, result, &timings)
	e.closeModule(pipeline.ID, "input", e.inputModule)
	e.inputModule = nil
	if err != nil {
		return finish(err)
	}
	result.RecordsRead = table.Len()

	table, err = e.executeFilters(ctx, pipeline, table, result, &timings)
	if err != nil {
		return finish(err)
	}
	result.RecordsRetained = table.Len()

	if e.dryRun {
		result.DryRunPreview = e.preview(pipeline.ID, table)
		result.RecordsWritten = 0
	} else if err := e.executeOutput(ctx, pipeline, table, result, &timings); err != nil {
		return finish(err)
	}

	result.Status = StatusSuccess
	if len(result.FiltersSkipped) > 0 {
		result.Status = StatusPartial
	}
	result.Error = nil
	out, _ := finish(nil)
	e.logMetrics(execCtx, result, timings)
	return out, nil
}

// validateExecution validates the pipeline and modules before execution.
func (e *Executor) validateExecution(pipeline *survey.Pipeline, result *survey.ExecutionResult) error {
	var err error
	module := ""
	switch {
	case pipeline == nil:
		err = ErrNilPipeline
	case e.inputModule == nil:
		err, module = ErrNilInputModule, "input"
	case e.outputModule == nil && !e.dryRun:
		err, module = ErrNilOutputModule, "output"
	default:
		return nil
	}
	logger.Error("pipeline execution failed", slog.String("error", err.Error()))
	result.CompletedAt = time.Now()
	result.Error = buildExecutionError(ErrCodeInvalidInput, module, err)
	return err
}

func (e *Executor) execContext(runID string, pipeline *survey.Pipeline, stage string) logger.ExecutionContext {
	return logger.ExecutionContext{
		RunID:        runID,
		PipelineID:   pipeline.ID,
		PipelineName: pipeline.Name,
		Stage:        stage,
		DryRun:       e.dryRun,
		FilterIndex:  -1,
	}
}

// executeInput fetches the detection table.
func (e *Executor) executeInput(ctx context.Context, pipeline *survey.Pipeline, result *survey.ExecutionResult, timings *stageTimings) (*detection.Table, error) {
	stageCtx := e.execContext(result.RunID, pipeline, "input")
	if pipeline.Input != nil {
		stageCtx.ModuleType = pipeline.Input.Type
	}
	logger.LogStageStart(stageCtx)

	start := time.Now()
	table, err := e.inputModule.Fetch(ctx)
	timings.inputDuration = time.Since(start)

	if err != nil {
		result.Error = buildExecutionError(ErrCodeInputFailed, "input", err)
		logger.LogStageEnd(stageCtx, 0, 0, timings.inputDuration, err)
		logStageError(stageCtx, result.Error, err)
		return nil, fmt.Errorf("executing input module: %w", err)
	}
	logger.LogStageEnd(stageCtx, 0, table.Len(), timings.inputDuration, nil)
	return table, nil
}

// executeFilters runs the filter chain in order. Under OnErrorContinue a
// failing filter is recorded and skipped; cancellation always stops the run.
func (e *Executor) executeFilters(ctx context.Context, pipeline *survey.Pipeline, table *detection.Table, result *survey.ExecutionResult, timings *stageTimings) (*detection.Table, error) {
	start := time.Now()
	defer func() { timings.filterDuration = time.Since(start) }()

	current := table
	for i, module := range e.filterModules {
		stageCtx := e.execContext(result.RunID, pipeline, "filter")
		stageCtx.FilterIndex = i
		if i < len(e.filterTypes) {
			stageCtx.ModuleType = e.filterTypes[i]
		}
		if module == nil {
			logger.Warn("nil filter module encountered; skipping",
				slog.String("pipeline_id", pipeline.ID),
				slog.Int("filter_index", i),
			)
			continue
		}

		logger.LogStageStart(stageCtx)
		filterStart := time.Now()
		next, err := module.Process(ctx, current)
		duration := time.Since(filterStart)

		if err != nil {
			logger.LogStageEnd(stageCtx, current.Len(), 0, duration, err)
			if e.onError == errhandling.OnErrorContinue && ctx.Err() == nil {
				logger.WithExecution(stageCtx).Warn("filter failed, passing its input through",
					slog.String("error", err.Error()),
				)
				result.FiltersSkipped = append(result.FiltersSkipped, i)
				continue
			}
			result.Error = buildExecutionError(ErrCodeFilterFailed, "filter", err)
			result.Error.Message = fmt.Sprintf("filter module %d failed: %v", i, err)
			result.Error.Details = map[string]interface{}{"filterIndex": i, "moduleType": stageCtx.ModuleType}
			logStageError(stageCtx, result.Error, err)
			return nil, fmt.Errorf("executing filter module %d: %w", i, err)
		}

		logger.LogStageEnd(stageCtx, current.Len(), next.Len(), duration, nil)
		current = next
	}
	return current, nil
}

// executeOutput writes the surviving detections.
func (e *Executor) executeOutput(ctx context.Context, pipeline *survey.Pipeline, table *detection.Table, result *survey.ExecutionResult, timings *stageTimings) error {
	stageCtx := e.execContext(result.RunID, pipeline, "output")
	if pipeline.Output != nil {
		stageCtx.ModuleType = pipeline.Output.Type
	}
	logger.LogStageStart(stageCtx)

	start := time.Now()
	written, err := e.outputModule.Send(ctx, table)
	timings.outputDuration = time.Since(start)
	result.RecordsWritten = written

	if err != nil {
		result.Error = buildExecutionError(ErrCodeOutputFailed, "output", err)
		logger.LogStageEnd(stageCtx, table.Len(), written, timings.outputDuration, err)
		logStageError(stageCtx, result.Error, err)
		return fmt.Errorf("executing output module: %w", err)
	}
	logger.LogStageEnd(stageCtx, table.Len(), written, timings.outputDuration, nil)
	return nil
}

// preview describes the skipped write in dry-run mode. Outputs that cannot
// describe themselves yield nil.
func (e *Executor) preview(pipelineID string, table *detection.Table) *survey.OutputPreview {
	previewable, ok := e.outputModule.(output.PreviewableModule)
	if !ok {
		logger.Debug("output module does not implement PreviewableModule, skipping preview",
			slog.String("pipeline_id", pipelineID),
		)
		return nil
	}
	p := previewable.Preview(table)
	logger.Info("dry run: output skipped",
		slog.String("pipeline_id", pipelineID),
		slog.String("module_type", p.ModuleType),
		slog.String("destination", p.Destination),
		slog.Int("records_would_write", p.RecordCount),
	)
	return &survey.OutputPreview{
		ModuleType:  p.ModuleType,
		Destination: p.Destination,
		RecordCount: p.RecordCount,
		Columns:     p.Columns,
	}
}

func (e *Executor) logMetrics(execCtx logger.ExecutionContext, result *survey.ExecutionResult, timings stageTimings) {
	total := result.CompletedAt.Sub(result.StartedAt)
	var perSecond float64
	if result.RecordsRead > 0 && total > 0 {
		perSecond = float64(result.RecordsRead) / total.Seconds()
	}
	logger.LogMetrics(execCtx, logger.ExecutionMetrics{
		TotalDuration:    total,
		InputDuration:    timings.inputDuration,
		FilterDuration:   timings.filterDuration,
		OutputDuration:   timings.outputDuration,
		RecordsRead:      result.RecordsRead,
		RecordsRetained:  result.RecordsRetained,
		RecordsWritten:   result.RecordsWritten,
		RecordsPerSecond: perSecond,
	})
}

// buildExecutionError creates an ExecutionError with its classified category.
func buildExecutionError(code, module string, err error) *survey.ExecutionError {
	return &survey.ExecutionError{
		Code:     code,
		Message:  err.Error(),
		Module:   module,
		Category: string(errhandling.ClassifyError(err).Category),
	}
}

// logStageError logs a stage failure with its code, category and error chain.
func logStageError(stageCtx logger.ExecutionContext, execErr *survey.ExecutionError, err error) {
	errCtx := logger.ErrorContext{
		RunID:      stageCtx.RunID,
		PipelineID: stageCtx.PipelineID,
		Stage:      stageCtx.Stage,
		ModuleType: stageCtx.ModuleType,
		ErrorCode:  execErr.Code,
		Category:   execErr.Category,
		Err:        err,
		RowIndex:   -1,
	}
	if stageCtx.FilterIndex >= 0 {
		errCtx.Extra = map[string]interface{}{"filter_index": stageCtx.FilterIndex}
	}
	logger.LogError("pipeline stage failed", errCtx)
}

// moduleCloser interface for modules that can be closed.
type moduleCloser interface {
	Close() error
}

// closeModule closes a module and logs any error.
func (e *Executor) closeModule(pipelineID, moduleName string, m moduleCloser) {
	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		logger.Warn("failed to close module",
			slog.String("pipeline_id", pipelineID),
			slog.String("module", moduleName),
			slog.String("error", err.Error()),
		)
	}
}

func closeQuietly(m moduleCloser) {
	if m != nil {
		_ = m.Close()
	}
}
