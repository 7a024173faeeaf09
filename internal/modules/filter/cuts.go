package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/detection"
)

// BrightLimitConfig configures the brightLimit module. Exactly one of Limit
// or Limits is set.
type BrightLimitConfig struct {
	// Limit applies to every detection
	Limit *float64 `json:"limit,omitempty"`
	// Limits maps optFilter to a per-filter saturation limit
	Limits map[string]float64 `json:"limits,omitempty"`
	Column string             `json:"column,omitempty"`
}

// ParseBrightLimitConfig reads a brightLimit config map.
func ParseBrightLimitConfig(cfg map[string]interface{}) (BrightLimitConfig, error) {
	var c BrightLimitConfig
	limit, hasLimit, err := floatParam(cfg, "limit")
	if err != nil {
		return c, err
	}
	rawLimits, hasLimits := cfg["limits"]
	if hasLimit && hasLimits {
		return c, fmt.Errorf("cannot specify both 'limit' and 'limits'")
	}
	switch {
	case hasLimit:
		c.Limit = &limit
	case hasLimits:
		m, ok := rawLimits.(map[string]interface{})
		if !ok || len(m) == 0 {
			return c, fmt.Errorf("'limits' must be a non-empty map of filter to limit")
		}
		c.Limits = make(map[string]float64, len(m))
		for f, v := range m {
			n, ok := detection.ToFloat(v)
			if !ok {
				return c, fmt.Errorf("'limits.%s' must be a number, got %T", f, v)
			}
			c.Limits[f] = n
		}
	default:
		return c, fmt.Errorf("%w (or 'limits')", ErrMissingLimit)
	}
	c.Column, err = stringParam(cfg, "column", detection.ColObservedPSFMag)
	return c, err
}

// BrightLimitModule drops saturated detections: it keeps rows whose
// magnitude is strictly greater than the bright limit. With per-filter
// limits, rows in a filter that has no limit are kept.
type BrightLimitModule struct {
	config BrightLimitConfig
}

// NewBrightLimitFromConfig creates the module.
func NewBrightLimitFromConfig(config BrightLimitConfig) (*BrightLimitModule, error) {
	if config.Limit == nil && len(config.Limits) == 0 {
		return nil, ErrMissingLimit
	}
	if config.Column == "" {
		config.Column = detection.ColObservedPSFMag
	}
	return &BrightLimitModule{config: config}, nil
}

func (m *BrightLimitModule) limitFor(rec detection.Record) (float64, bool) {
	if m.config.Limit != nil {
		return *m.config.Limit, true
	}
	f, _ := rec[detection.ColFilter].(string)
	l, ok := m.config.Limits[f]
	return l, ok
}

// Process implements Module.
func (m *BrightLimitModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	required := []string{m.config.Column}
	if m.config.Limit == nil {
		required = append(required, detection.ColFilter)
	}
	if err := table.RequireColumns(required...); err != nil {
		return nil, fmt.Errorf("bright limit: %w", err)
	}

	out := detection.NewTable(table.Columns...)
	for i, rec := range table.Rows {
		if err := checkCancelled(ctx, i); err != nil {
			return nil, err
		}
		limit, ok := m.limitFor(rec)
		if !ok {
			out.Append(rec)
			continue
		}
		if mag, ok := rec.Float(m.config.Column); ok && mag > limit {
			out.Append(rec)
		}
	}

	logger.Debug("bright limit applied",
		slog.Int("records_in", table.Len()),
		slog.Int("records_kept", out.Len()),
	)
	return out, nil
}

// SNRLimitModule keeps detections whose signal-to-noise ratio is strictly
// greater than the limit.
type SNRLimitModule struct {
	limit  float64
	column string
}

// NewSNRLimitFromConfig creates the module from a snrLimit config map.
func NewSNRLimitFromConfig(cfg map[string]interface{}) (*SNRLimitModule, error) {
	limit, ok, err := floatParam(cfg, "limit")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMissingLimit
	}
	column, err := stringParam(cfg, "column", detection.ColSNR)
	if err != nil {
		return nil, err
	}
	return &SNRLimitModule{limit: limit, column: column}, nil
}

// Process implements Module.
func (m *SNRLimitModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	if err := table.RequireColumns(m.column); err != nil {
		return nil, fmt.Errorf("snr limit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := table.Select(func(rec detection.Record) bool {
		snr, ok := rec.Float(m.column)
		return ok && snr > m.limit
	})
	logger.Debug("snr limit applied",
		slog.Float64("limit", m.limit),
		slog.Int("records_in", table.Len()),
		slog.Int("records_kept", out.Len()),
	)
	return out, nil
}
