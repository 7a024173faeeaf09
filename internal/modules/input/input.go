// Package input provides implementations for input modules.
// Input modules load the detection table a pipeline run starts from.
package input

import (
	"context"
	"errors"

	"github.com/surveysim/runtime/pkg/detection"
)

// ErrMissingPath is returned when an input is configured without a path.
var ErrMissingPath = errors.New("'path' is required")

// Module represents an input module that loads a detection table.
type Module interface {
	// Fetch loads the table.
	// The context can be used to cancel long-running operations.
	Fetch(ctx context.Context) (*detection.Table, error)
	// Close releases any resources held by the module.
	Close() error
}
