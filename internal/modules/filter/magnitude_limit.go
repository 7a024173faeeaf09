package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/detection"
)

// ErrMissingLimit is returned when a cut is configured without a limit.
var ErrMissingLimit = errors.New("'limit' is required")

// FilterByMagnitudeLimit returns the detections brighter than limit, that is
// with observedPSFMag strictly less than limit. Row order and the column
// schema are preserved and the input table is left untouched. Rows whose
// magnitude is missing or not numeric compare false and are dropped.
func FilterByMagnitudeLimit(table *detection.Table, limit float64) *detection.Table {
	return FilterByColumnLimit(table, detection.ColObservedPSFMag, limit)
}

// FilterByColumnLimit keeps the rows whose column value is strictly less
// than limit.
func FilterByColumnLimit(table *detection.Table, column string, limit float64) *detection.Table {
	return table.Select(func(rec detection.Record) bool {
		mag, ok := rec.Float(column)
		return ok && mag < limit
	})
}

// MagnitudeLimitConfig configures the magnitudeLimit module.
type MagnitudeLimitConfig struct {
	// Limit is the faint-end cutoff (required)
	Limit float64 `json:"limit"`
	// Column holds the magnitude to compare, default observedPSFMag
	Column string `json:"column,omitempty"`
}

// ParseMagnitudeLimitConfig reads a magnitudeLimit config map.
func ParseMagnitudeLimitConfig(cfg map[string]interface{}) (MagnitudeLimitConfig, error) {
	var c MagnitudeLimitConfig
	limit, ok, err := floatParam(cfg, "limit")
	if err != nil {
		return c, err
	}
	if !ok {
		return c, ErrMissingLimit
	}
	column, err := stringParam(cfg, "column", detection.ColObservedPSFMag)
	if err != nil {
		return c, err
	}
	c.Limit = limit
	c.Column = column
	return c, nil
}

// MagnitudeLimitModule drops detections fainter than the survey limit.
type MagnitudeLimitModule struct {
	limit  float64
	column string
}

// NewMagnitudeLimitFromConfig creates the module.
func NewMagnitudeLimitFromConfig(config MagnitudeLimitConfig) (*MagnitudeLimitModule, error) {
	column := config.Column
	if column == "" {
		column = detection.ColObservedPSFMag
	}
	logger.Debug("magnitude limit module initialized",
		slog.Float64("limit", config.Limit),
		slog.String("column", column),
	)
	return &MagnitudeLimitModule{limit: config.Limit, column: column}, nil
}

// Process applies the cut. Unlike FilterByMagnitudeLimit it refuses a table
// whose schema lacks the magnitude column.
func (m *MagnitudeLimitModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := table.RequireColumns(m.column); err != nil {
		return nil, fmt.Errorf("magnitude limit: %w", err)
	}

	out := FilterByColumnLimit(table, m.column, m.limit)

	logger.Debug("magnitude limit applied",
		slog.Float64("limit", m.limit),
		slog.Int("records_in", table.Len()),
		slog.Int("records_kept", out.Len()),
		slog.Int("records_dropped", table.Len()-out.Len()),
	)
	return out, nil
}
