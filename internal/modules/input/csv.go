package input

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/internal/tableio"
	"github.com/surveysim/runtime/pkg/detection"
)

// CSVConfig configures the csv input module.
type CSVConfig struct {
	Path string `json:"path"`
	// Delimiter is "," (default), "whitespace" or a single character
	Delimiter string `json:"delimiter,omitempty"`
	// StringColumns are kept as text; nil means ObjID and optFilter
	StringColumns []string `json:"stringColumns,omitempty"`
}

// ParseCSVConfig reads a csv input config map.
func ParseCSVConfig(cfg map[string]interface{}) (CSVConfig, error) {
	var c CSVConfig
	c.Path, _ = cfg["path"].(string)
	if c.Path == "" {
		return c, ErrMissingPath
	}
	if err := pathutil.ValidateFilePath(c.Path); err != nil {
		return c, err
	}
	c.Delimiter, _ = cfg["delimiter"].(string)
	if _, ok := cfg["stringColumns"]; ok {
		c.StringColumns = plugin.StringList(cfg["stringColumns"])
	}
	if _, _, err := tableio.ParseDelimiter(c.Delimiter); err != nil {
		return c, err
	}
	return c, nil
}

// CSVInput reads a delimited detection file.
type CSVInput struct {
	config CSVConfig
}

// NewCSVInputFromConfig creates the module.
func NewCSVInputFromConfig(config CSVConfig) *CSVInput {
	return &CSVInput{config: config}
}

// Fetch reads and parses the whole file.
func (c *CSVInput) Fetch(ctx context.Context) (*detection.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f, err := os.Open(c.config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening detections file: %w", err)
	}
	defer func() { _ = f.Close() }()

	table, err := tableio.ReadDelimited(f, tableio.Options{
		Delimiter:     c.config.Delimiter,
		StringColumns: c.config.StringColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", c.config.Path, err)
	}

	logger.Debug("detections file read",
		slog.String("path", c.config.Path),
		slog.Int("records", table.Len()),
		slog.Int("columns", len(table.Columns)),
		slog.Duration("duration", time.Since(start)),
	)
	return table, nil
}

// Close implements Module.
func (c *CSVInput) Close() error {
	return nil
}
