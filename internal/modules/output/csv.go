package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/internal/tableio"
	"github.com/surveysim/runtime/pkg/detection"
)

// CSVConfig configures the csv output module.
type CSVConfig struct {
	Path      string `json:"path"`
	Delimiter string `json:"delimiter,omitempty"`
}

// ParseCSVConfig reads a csv output config map.
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
	if _, _, err := tableio.ParseDelimiter(c.Delimiter); err != nil {
		return c, err
	}
	return c, nil
}

// CSVOutput writes the table to a delimited file. The file is written to a
// temporary name in the same directory and renamed into place.
type CSVOutput struct {
	config CSVConfig
}

// NewCSVOutputFromConfig creates the module.
func NewCSVOutputFromConfig(config CSVConfig) *CSVOutput {
	return &CSVOutput{config: config}
}

// Send implements Module.
func (c *CSVOutput) Send(ctx context.Context, table *detection.Table) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()

	dir := filepath.Dir(c.config.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.config.Path)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tableio.WriteDelimited(tmp, table, c.config.Delimiter); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("writing %q: %w", c.config.Path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("closing output file: %w", err)
	}
	// CreateTemp uses 0600; give the result the mode os.Create would.
	if err := os.Chmod(tmpName, outputFileMode); err != nil {
		cleanup()
		return 0, fmt.Errorf("setting output file mode: %w", err)
	}
	if err := os.Rename(tmpName, c.config.Path); err != nil {
		cleanup()
		return 0, fmt.Errorf("moving output into place: %w", err)
	}

	logger.Debug("detections file written",
		slog.String("path", c.config.Path),
		slog.Int("records", table.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return table.Len(), nil
}

// outputFileMode is the permission of written detection files.
const outputFileMode = 0o644

// Preview implements PreviewableModule.
func (c *CSVOutput) Preview(table *detection.Table) Preview {
	return Preview{ModuleType: "csv", Destination: c.config.Path, RecordCount: table.Len(), Columns: table.Columns}
}

// Close implements Module.
func (c *CSVOutput) Close() error {
	return nil
}

var _ PreviewableModule = (*CSVOutput)(nil)
