package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/tableio"
	"github.com/surveysim/runtime/pkg/detection"
)

// DefaultConsoleMaxRows bounds how many rows the console output prints.
const DefaultConsoleMaxRows = 20

// ConsoleOutput prints the first rows of the table to stdout as CSV and
// logs a summary. It is intended for inspecting a pipeline.
type ConsoleOutput struct {
	maxRows   int
	delimiter string
	w         io.Writer
}

// NewConsoleFromConfig creates the module from {maxRows, delimiter}.
func NewConsoleFromConfig(cfg map[string]interface{}) (*ConsoleOutput, error) {
	maxRows := DefaultConsoleMaxRows
	if v, ok := cfg["maxRows"]; ok {
		n, ok := detection.ToFloat(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("'maxRows' must be a non-negative number")
		}
		maxRows = int(n)
	}
	delimiter, _ := cfg["delimiter"].(string)
	if _, _, err := tableio.ParseDelimiter(delimiter); err != nil {
		return nil, err
	}
	return &ConsoleOutput{maxRows: maxRows, delimiter: delimiter, w: os.Stdout}, nil
}

// SetWriter redirects printed rows, for tests.
func (c *ConsoleOutput) SetWriter(w io.Writer) {
	c.w = w
}

// Send implements Module.
func (c *ConsoleOutput) Send(_ context.Context, table *detection.Table) (int, error) {
	shown := table
	if table.Len() > c.maxRows {
		shown = detection.NewTable(table.Columns...)
		shown.Rows = table.Rows[:c.maxRows]
	}
	if err := tableio.WriteDelimited(c.w, shown, c.delimiter); err != nil {
		return 0, fmt.Errorf("console output: %w", err)
	}
	logger.Info("detections printed",
		slog.String("module_type", "console"),
		slog.Int("records", table.Len()),
		slog.Int("records_shown", shown.Len()),
	)
	return table.Len(), nil
}

// Preview implements PreviewableModule.
func (c *ConsoleOutput) Preview(table *detection.Table) Preview {
	return Preview{ModuleType: "console", Destination: "stdout", RecordCount: table.Len(), Columns: table.Columns}
}

// Close implements Module.
func (c *ConsoleOutput) Close() error {
	return nil
}

var _ PreviewableModule = (*ConsoleOutput)(nil)
