package input

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surveysim/runtime/internal/database"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/detection"
)

// ErrMissingQuery is returned when neither query nor table is configured.
var ErrMissingQuery = errors.New("either 'query' or 'table' is required for sqlite input")

// SQLiteConfig configures the sqlite input module.
type SQLiteConfig struct {
	Path string `json:"path"`
	// Query is run as-is; use Query OR Table
	Query string `json:"query,omitempty"`
	// Table selects every row of a table
	Table string `json:"table,omitempty"`
}

// ParseSQLiteConfig reads a sqlite input config map.
func ParseSQLiteConfig(cfg map[string]interface{}) (SQLiteConfig, error) {
	var c SQLiteConfig
	c.Path, _ = cfg["path"].(string)
	c.Query, _ = cfg["query"].(string)
	c.Table, _ = cfg["table"].(string)
	if c.Path == "" {
		return c, ErrMissingPath
	}
	switch {
	case c.Query != "" && c.Table != "":
		return c, errors.New("cannot specify both 'query' and 'table'")
	case c.Query == "" && c.Table == "":
		return c, ErrMissingQuery
	case c.Table != "":
		if err := database.ValidateIdentifier(c.Table); err != nil {
			return c, err
		}
	}
	return c, nil
}

// SQLiteInput loads detections with a SELECT from a sqlite database.
type SQLiteInput struct {
	config SQLiteConfig
	db     *sql.DB
}

// NewSQLiteInputFromConfig opens the database read-only.
func NewSQLiteInputFromConfig(ctx context.Context, config SQLiteConfig) (*SQLiteInput, error) {
	db, err := database.Open(ctx, database.Config{Path: config.Path, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("creating sqlite input: %w", err)
	}
	return &SQLiteInput{config: config, db: db}, nil
}

func (s *SQLiteInput) query() string {
	if s.config.Query != "" {
		return s.config.Query
	}
	return "SELECT * FROM " + database.QuoteIdentifier(s.config.Table)
}

// Fetch runs the query and returns its rows in result order.
// TEXT columns become strings, INTEGER and REAL columns float64.
func (s *SQLiteInput) Fetch(ctx context.Context) (*detection.Table, error) {
	start := time.Now()
	query := s.query()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, database.ClassifyDatabaseError(err, "select", query)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, database.ClassifyDatabaseError(err, "select", query)
	}

	table := detection.NewTable(columns...)
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, database.ClassifyDatabaseError(err, "scan", query)
		}
		rec := make(detection.Record, len(columns))
		for i, col := range columns {
			rec[col] = normalizeValue(values[i])
		}
		table.Append(rec)
		if table.Len()%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, database.ClassifyDatabaseError(err, "select", query)
	}

	logger.Debug("sqlite input read",
		slog.String("path", s.config.Path),
		slog.Int("records", table.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return table, nil
}

func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int64:
		return float64(x)
	default:
		return x
	}
}

// Close releases the database handle.
func (s *SQLiteInput) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
