// Package filter provides implementations for filter modules.
// Filter modules cut and adjust detection tables between input and output.
package filter

import (
	"context"
	"fmt"

	"github.com/surveysim/runtime/pkg/detection"
)

// OnError behavior constants
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
	OnErrorLog  = "log"
)

// ctxCheckInterval is how many rows a module processes between cancellation checks.
const ctxCheckInterval = 1000

// Module represents a filter module that transforms a detection table.
type Module interface {
	// Process returns a new table; the input table is never modified.
	Process(ctx context.Context, table *detection.Table) (*detection.Table, error)
}

// checkCancelled reports ctx cancellation every ctxCheckInterval rows.
func checkCancelled(ctx context.Context, row int) error {
	if row%ctxCheckInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("filter cancelled at row %d: %w", row, err)
	}
	return nil
}

// floatParam reads a numeric config value.
func floatParam(cfg map[string]interface{}, key string) (float64, bool, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := detection.ToFloat(raw)
	if !ok {
		return 0, true, fmt.Errorf("'%s' must be a number, got %T", key, raw)
	}
	return f, true, nil
}

// stringParam reads a string config value, returning def when absent.
func stringParam(cfg map[string]interface{}, key, def string) (string, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string, got %T", key, raw)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}
