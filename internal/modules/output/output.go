// Package output provides implementations for output modules.
// Output modules write the surviving detections of a run.
package output

import (
	"context"
	"errors"

	"github.com/surveysim/runtime/pkg/detection"
)

// ErrMissingPath is returned when an output is configured without a path.
var ErrMissingPath = errors.New("'path' is required")

// Module represents an output module that writes a detection table.
type Module interface {
	// Send writes the table and returns the number of rows written.
	Send(ctx context.Context, table *detection.Table) (int, error)

	// Close releases any resources held by the module.
	Close() error
}

// Preview describes what an output would write, for dry runs.
type Preview struct {
	ModuleType  string
	Destination string
	RecordCount int
	Columns     []string
}

// PreviewableModule is implemented by outputs that can describe a write
// without performing it.
type PreviewableModule interface {
	Module
	Preview(table *detection.Table) Preview
}
