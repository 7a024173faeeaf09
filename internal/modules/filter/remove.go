package filter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/pkg/detection"
)

// ErrNoColumns is returned when removeColumns is configured without columns.
var ErrNoColumns = errors.New("at least one column is required")

// RemoveColumnsConfig configures the removeColumns module.
type RemoveColumnsConfig struct {
	Column  string   `json:"column,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// ParseRemoveColumnsConfig reads a removeColumns config map.
func ParseRemoveColumnsConfig(cfg map[string]interface{}) (RemoveColumnsConfig, error) {
	var c RemoveColumnsConfig
	column, err := stringParam(cfg, "column", "")
	if err != nil {
		return c, err
	}
	c.Column = column
	c.Columns = plugin.StringList(cfg["columns"])
	return c, nil
}

// RemoveColumnsModule drops columns from the schema and from every row.
// Columns absent from the table are ignored.
type RemoveColumnsModule struct {
	columns []string
}

// NewRemoveColumnsFromConfig creates the module. Duplicate names are collapsed.
func NewRemoveColumnsFromConfig(config RemoveColumnsConfig) (*RemoveColumnsModule, error) {
	names := make([]string, 0, len(config.Columns)+1)
	names = append(names, config.Columns...)
	names = append(names, config.Column)

	seen := make(map[string]bool)
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	if len(unique) == 0 {
		return nil, ErrNoColumns
	}

	logger.Debug("removeColumns filter module initialized", slog.Any("columns", unique))
	return &RemoveColumnsModule{columns: unique}, nil
}

// Process returns a copy of table without the configured columns.
func (m *RemoveColumnsModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(m.columns))
	for _, c := range m.columns {
		drop[c] = true
	}

	kept := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		if !drop[c] {
			kept = append(kept, c)
		}
	}

	out := detection.NewTable(kept...)
	out.Rows = make([]detection.Record, 0, table.Len())
	for i, rec := range table.Rows {
		if err := checkCancelled(ctx, i); err != nil {
			return nil, err
		}
		cp := make(detection.Record, len(kept))
		for _, c := range kept {
			if v, ok := rec[c]; ok {
				cp[c] = v
			}
		}
		out.Rows = append(out.Rows, cp)
	}
	return out, nil
}
