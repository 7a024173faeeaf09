package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surveysim/runtime/internal/colour"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/pkg/detection"
)

// ColourOffsetsConfig configures the colourOffsets module.
type ColourOffsetsConfig struct {
	// ColoursFile holds one row per object with H_<main> and <x>-<main> columns
	ColoursFile string `json:"coloursFile"`
	// ObservingFilters lists the survey's filters
	ObservingFilters []string `json:"observingFilters"`
	// Delimiter of ColoursFile: "," (default), "whitespace" or a single character
	Delimiter string `json:"delimiter,omitempty"`
}

// ParseColourOffsetsConfig reads a colourOffsets config map.
func ParseColourOffsetsConfig(cfg map[string]interface{}) (ColourOffsetsConfig, error) {
	var c ColourOffsetsConfig
	var err error
	if c.ColoursFile, err = stringParam(cfg, "coloursFile", ""); err != nil {
		return c, err
	}
	if c.ColoursFile == "" {
		return c, errors.New("'coloursFile' is required")
	}
	c.ObservingFilters = plugin.StringList(cfg["observingFilters"])
	if len(c.ObservingFilters) == 0 {
		return c, errors.New("'observingFilters' must be a non-empty list of filter names")
	}
	c.Delimiter, err = stringParam(cfg, "delimiter", "")
	return c, err
}

// ColourOffsetsModule adds H_filter, each detection's absolute magnitude in
// its own filter.
type ColourOffsetsModule struct {
	colours *colour.Table
}

// NewColourOffsetsFromConfig loads the colour file.
func NewColourOffsetsFromConfig(config ColourOffsetsConfig) (*ColourOffsetsModule, error) {
	ct, err := colour.Load(config.ColoursFile, config.ObservingFilters, config.Delimiter)
	if err != nil {
		return nil, err
	}
	return NewColourOffsets(ct), nil
}

// NewColourOffsets wraps an already loaded colour table.
func NewColourOffsets(ct *colour.Table) *ColourOffsetsModule {
	return &ColourOffsetsModule{colours: ct}
}

// Process implements Module.
func (m *ColourOffsetsModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := colour.Apply(table, m.colours)
	if err != nil {
		return nil, fmt.Errorf("colour offsets: %w", err)
	}
	logger.Debug("colour offsets applied",
		slog.String("main_filter", m.colours.MainFilter()),
		slog.Int("records", out.Len()),
	)
	return out, nil
}
