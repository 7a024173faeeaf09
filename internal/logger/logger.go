// Package logger provides structured logging for the survey runtime.
// It wraps the standard log/slog package so every stage logs through one
// package-level Logger with consistent snake_case field names.
//
// Two console formats are supported:
//   - JSON (default): machine-readable structured logging
//   - Human: readable console lines with level glyphs and optional colors
//
// A log file may be attached in addition to the console; file output is
// always JSON.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

// OutputFormat represents the console log output format.
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format
	FormatHuman
)

var (
	mu      sync.Mutex
	logFile *os.File
)

func init() {
	Logger = slog.New(newConsoleHandler(os.Stdout, FormatJSON, slog.LevelInfo))
}

// SetLevelAndFormat sets both the log level and console format.
// Any attached log file is detached.
func SetLevelAndFormat(level slog.Level, format OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	Logger = slog.New(newConsoleHandler(os.Stdout, format, level))
}

// ParseFormat converts a flag value ("json" or "human") to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "human", "text":
		return FormatHuman, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q (expected json or human)", s)
	}
}

func newConsoleHandler(w io.Writer, format OutputFormat, level slog.Level) slog.Handler {
	if format == FormatHuman {
		return NewHumanHandler(w, &HumanHandlerOptions{
			Level:     level,
			UseColors: isTerminal(w),
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// =============================================================================
// Execution Context Helpers
// =============================================================================

// ExecutionContext identifies where in a pipeline execution a log line comes from.
type ExecutionContext struct {
	// RunID identifies one execution of a pipeline
	RunID string
	// PipelineID is the pipeline identifier (required)
	PipelineID string
	// PipelineName is the human-readable name of the pipeline
	PipelineName string
	// Stage is the current stage (input, filter, output)
	Stage string
	// ModuleType is the module type (csv, magnitudeLimit, sqlite, ...)
	ModuleType string
	// DryRun is set when the output stage is skipped
	DryRun bool
	// FilterIndex is the position in the filter chain; negative when not in the filter stage
	FilterIndex int
}

// ExecutionMetrics contains performance figures for one execution.
type ExecutionMetrics struct {
	TotalDuration    time.Duration
	InputDuration    time.Duration
	FilterDuration   time.Duration
	OutputDuration   time.Duration
	RecordsRead      int
	RecordsRetained  int
	RecordsWritten   int
	RecordsPerSecond float64
}

// ErrorContext contains structured context for error logging.
type ErrorContext struct {
	RunID      string
	PipelineID string
	Stage      string
	ModuleType string

	ErrorCode string
	Category  string
	Err       error

	// RowIndex is the failing row; negative when not row-specific
	RowIndex int
	Column   string
	Path     string

	Extra map[string]interface{}
}

// WithExecution returns a logger with the non-empty execution context fields attached.
func WithExecution(ctx ExecutionContext) *slog.Logger {
	return Logger.With(buildContextAttrs(ctx)...)
}

// LogExecutionStart logs the start of a pipeline execution.
func LogExecutionStart(ctx ExecutionContext) {
	Logger.Info("execution started", buildContextAttrs(ctx)...)
}

// LogExecutionEnd logs the completion of a pipeline execution.
func LogExecutionEnd(ctx ExecutionContext, status string, recordsWritten int, duration time.Duration) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", status),
		slog.Int("records_written", recordsWritten),
		slog.Duration("duration", duration),
	)
	Logger.Info("execution completed", attrs...)
}

// LogStageStart logs the start of a pipeline stage.
func LogStageStart(ctx ExecutionContext) {
	Logger.Debug("stage started", buildContextAttrs(ctx)...)
}

// LogStageEnd logs the completion of a stage with its row counts.
// A non-nil err logs at error level.
func LogStageEnd(ctx ExecutionContext, recordsIn, recordsOut int, duration time.Duration, err error) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("records_in", recordsIn),
		slog.Int("records_out", recordsOut),
		slog.Duration("duration", duration),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		Logger.Error("stage failed", attrs...)
		return
	}
	Logger.Info("stage completed", attrs...)
}

// LogMetrics logs execution performance metrics.
func LogMetrics(ctx ExecutionContext, m ExecutionMetrics) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Duration("total_duration", m.TotalDuration),
		slog.Duration("input_duration", m.InputDuration),
		slog.Duration("filter_duration", m.FilterDuration),
		slog.Duration("output_duration", m.OutputDuration),
		slog.Int("records_read", m.RecordsRead),
		slog.Int("records_retained", m.RecordsRetained),
		slog.Int("records_written", m.RecordsWritten),
		slog.Float64("records_per_second", m.RecordsPerSecond),
	)
	Logger.Info("execution metrics", attrs...)
}

// LogError logs an error with whatever context is available.
// The unwrap chain of Err is flattened into error_chain.
func LogError(message string, errCtx ErrorContext) {
	attrs := make([]any, 0, 16)
	addStr := func(key, val string) {
		if val != "" {
			attrs = append(attrs, slog.String(key, val))
		}
	}
	addStr("run_id", errCtx.RunID)
	addStr("pipeline_id", errCtx.PipelineID)
	addStr("stage", errCtx.Stage)
	addStr("module_type", errCtx.ModuleType)
	addStr("error_code", errCtx.ErrorCode)
	addStr("error_category", errCtx.Category)

	if errCtx.Err != nil {
		attrs = append(attrs,
			slog.String("error", errCtx.Err.Error()),
			slog.String("error_type", fmt.Sprintf("%T", errCtx.Err)),
		)
		chain := []string{errCtx.Err.Error()}
		for cur := errors.Unwrap(errCtx.Err); cur != nil; cur = errors.Unwrap(cur) {
			chain = append(chain, cur.Error())
		}
		if len(chain) > 1 {
			attrs = append(attrs, slog.String("error_chain", strings.Join(chain, " -> ")))
		}
	}

	if errCtx.RowIndex >= 0 {
		attrs = append(attrs, slog.Int("row_index", errCtx.RowIndex))
	}
	addStr("column", errCtx.Column)
	addStr("path", errCtx.Path)

	for k, v := range errCtx.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}

	Logger.Error(message, attrs...)
}

// buildContextAttrs builds slog attributes from an ExecutionContext.
// pipeline_id is always present; other fields only when set.
func buildContextAttrs(ctx ExecutionContext) []any {
	attrs := make([]any, 0, 8)
	if ctx.RunID != "" {
		attrs = append(attrs, slog.String("run_id", ctx.RunID))
	}
	attrs = append(attrs, slog.String("pipeline_id", ctx.PipelineID))
	if ctx.PipelineName != "" {
		attrs = append(attrs, slog.String("pipeline_name", ctx.PipelineName))
	}
	if ctx.Stage != "" {
		attrs = append(attrs, slog.String("stage", ctx.Stage))
	}
	if ctx.ModuleType != "" {
		attrs = append(attrs, slog.String("module_type", ctx.ModuleType))
	}
	if ctx.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if ctx.FilterIndex >= 0 {
		attrs = append(attrs, slog.Int("filter_index", ctx.FilterIndex))
	}
	return attrs
}

// FormatMetricsHuman renders execution metrics as one line for the console.
func FormatMetricsHuman(m ExecutionMetrics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Read %d detections, kept %d, wrote %d in %s",
		m.RecordsRead, m.RecordsRetained, m.RecordsWritten, formatDuration(m.TotalDuration))
	if m.RecordsPerSecond > 0 {
		fmt.Fprintf(&sb, " (%.1f rows/sec)", m.RecordsPerSecond)
	}
	return sb.String()
}

// =============================================================================
// Human-Readable Handler
// =============================================================================

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	// Level is the minimum log level to output
	Level slog.Level
	// UseColors enables ANSI color codes
	UseColors bool
}

// HumanHandler is a slog handler that writes one readable line per record.
type HumanHandler struct {
	opts   HumanHandlerOptions
	writer io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	if opts == nil {
		opts = &HumanHandlerOptions{Level: slog.LevelInfo}
	}
	return &HumanHandler{opts: *opts, writer: w}
}

// Enabled reports whether the handler emits records at level.
func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// maxInlineAttrs caps how many attributes are printed on one line.
const maxInlineAttrs = 6

// Handle writes a log record.
func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(h.levelPrefix(r.Level, r.Message))
	sb.WriteString(" ")
	sb.WriteString(r.Message)

	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, h.formatAttr(a))
		return true
	})
	for _, a := range h.attrs {
		parts = append(parts, h.formatAttr(a))
	}

	if len(parts) > 0 {
		n := len(parts)
		if n > maxInlineAttrs {
			n = maxInlineAttrs
		}
		sb.WriteString(" ")
		sb.WriteString(strings.Join(parts[:n], " "))
		if len(parts) > maxInlineAttrs {
			fmt.Fprintf(&sb, " (+%d more)", len(parts)-maxInlineAttrs)
		}
	}
	sb.WriteString("\n")

	_, err := io.WriteString(h.writer, sb.String())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &HumanHandler{opts: h.opts, writer: h.writer, attrs: merged, groups: h.groups}
}

// WithGroup returns a new handler with the given group name.
func (h *HumanHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string{}, h.groups...), name)
	return &HumanHandler{opts: h.opts, writer: h.writer, attrs: h.attrs, groups: groups}
}

func (h *HumanHandler) levelPrefix(level slog.Level, message string) string {
	const (
		colorReset  = "\033[0m"
		colorRed    = "\033[31m"
		colorYellow = "\033[33m"
		colorGreen  = "\033[32m"
		colorCyan   = "\033[36m"
	)

	lower := strings.ToLower(message)
	success := strings.Contains(lower, "completed") || strings.Contains(lower, "success")

	var prefix, color string
	switch {
	case level >= slog.LevelError:
		prefix, color = "✗", colorRed
	case level >= slog.LevelWarn:
		prefix, color = "⚠", colorYellow
	case level >= slog.LevelInfo && success:
		prefix, color = "✓", colorGreen
	case level >= slog.LevelInfo:
		prefix, color = "ℹ", colorCyan
	default:
		prefix, color = "·", colorReset
	}

	if h.opts.UseColors {
		return color + prefix + colorReset
	}
	return prefix
}

func (h *HumanHandler) formatAttr(a slog.Attr) string {
	switch v := a.Value.Any().(type) {
	case time.Duration:
		return fmt.Sprintf("%s=%s", a.Key, formatDuration(v))
	case float64:
		return fmt.Sprintf("%s=%.3f", a.Key, v)
	default:
		return fmt.Sprintf("%s=%v", a.Key, v)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// =============================================================================
// Log File Output
// =============================================================================

// maxLogFileSize is the size at which an existing log file is rotated (10MB).
const maxLogFileSize = 10 * 1024 * 1024

// SetLogFile sends logs to both the console and the file at path.
// An existing file of at least 10MB is renamed with a timestamp suffix first.
func SetLogFile(path string, level slog.Level, consoleFormat OutputFormat) error {
	CloseLogFile()

	if err := rotateLogFile(path); err != nil {
		Warn("log rotation failed", slog.String("error", err.Error()))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	mu.Lock()
	logFile = f
	Logger = slog.New(&dualHandler{
		console: newConsoleHandler(os.Stdout, consoleFormat, level),
		file:    slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}),
	})
	mu.Unlock()

	Debug("log file opened", slog.String("path", path))
	return nil
}

// CloseLogFile closes the current log file if one is open.
func CloseLogFile() {
	mu.Lock()
	f := logFile
	logFile = nil
	mu.Unlock()
	if f == nil {
		return
	}
	if err := f.Sync(); err != nil {
		Warn("failed to sync log file", slog.String("error", err.Error()))
	}
	if err := f.Close(); err != nil {
		Warn("failed to close log file", slog.String("error", err.Error()))
	}
}

func rotateLogFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking log file size: %w", err)
	}
	if info.Size() < maxLogFileSize {
		return nil
	}
	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("20060102-150405"))
	if err := os.Rename(path, rotated); err != nil {
		return fmt.Errorf("rotating log file: %w", err)
	}
	return nil
}

// dualHandler fans records out to a console and a file handler.
type dualHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (d *dualHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.console.Enabled(ctx, level) || d.file.Enabled(ctx, level)
}

func (d *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	if d.console.Enabled(ctx, r.Level) {
		if err := d.console.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if d.file.Enabled(ctx, r.Level) {
		return d.file.Handle(ctx, r)
	}
	return nil
}

func (d *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{console: d.console.WithAttrs(attrs), file: d.file.WithAttrs(attrs)}
}

func (d *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{console: d.console.WithGroup(name), file: d.file.WithGroup(name)}
}
