package output

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surveysim/runtime/internal/database"
	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/pkg/detection"
)

// ErrMissingTable is returned when the sqlite output has no table name.
var ErrMissingTable = errors.New("'table' is required for sqlite output")

// SQLiteConfig configures the sqlite output module.
type SQLiteConfig struct {
	Path  string `json:"path"`
	Table string `json:"table"`
	// Overwrite drops an existing table first; otherwise rows are appended
	Overwrite bool `json:"overwrite,omitempty"`
}

// ParseSQLiteConfig reads a sqlite output config map.
func ParseSQLiteConfig(cfg map[string]interface{}) (SQLiteConfig, error) {
	var c SQLiteConfig
	c.Path, _ = cfg["path"].(string)
	c.Table, _ = cfg["table"].(string)
	c.Overwrite, _ = cfg["overwrite"].(bool)
	if c.Path == "" {
		return c, ErrMissingPath
	}
	if c.Table == "" {
		return c, ErrMissingTable
	}
	if err := database.ValidateIdentifier(c.Table); err != nil {
		return c, err
	}
	return c, nil
}

// SQLiteOutput writes detections into a sqlite table in one transaction.
// Busy or locked databases are retried with backoff.
type SQLiteOutput struct {
	config SQLiteConfig
	retry  errhandling.RetryConfig
	db     *sql.DB
}

// NewSQLiteOutputFromConfig creates the module. The database is opened by
// the first Send, so a dry run never creates the file.
func NewSQLiteOutputFromConfig(config SQLiteConfig, retry errhandling.RetryConfig) (*SQLiteOutput, error) {
	if err := pathutil.ValidateFilePath(config.Path); err != nil {
		return nil, fmt.Errorf("creating sqlite output: %w", err)
	}
	logger.Debug("sqlite output module created",
		slog.String("path", config.Path),
		slog.String("table", config.Table),
		slog.Bool("overwrite", config.Overwrite),
		slog.Int("retry_count", retry.MaxAttempts),
	)
	return &SQLiteOutput{config: config, retry: retry}, nil
}

func (s *SQLiteOutput) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	db, err := database.Open(ctx, database.Config{Path: s.config.Path})
	if err != nil {
		return fmt.Errorf("opening sqlite output: %w", err)
	}
	s.db = db
	return nil
}

// Send creates the table if needed and inserts every row.
func (s *SQLiteOutput) Send(ctx context.Context, table *detection.Table) (int, error) {
	start := time.Now()
	if err := s.open(ctx); err != nil {
		return 0, err
	}
	executor := errhandling.NewRetryExecutor(s.retry)

	var written int
	err := executor.ExecuteWithCallback(ctx, func(ctx context.Context) error {
		n, err := s.write(ctx, table)
		written = n
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		if err != nil && nextDelay > 0 {
			logger.Warn("sqlite write failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("next_delay", nextDelay),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		logger.Error("sqlite output send failed",
			slog.String("module_type", "sqlite"),
			slog.Int("attempts", executor.GetRetryInfo().TotalAttempts),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	logger.Debug("sqlite output send completed",
		slog.String("module_type", "sqlite"),
		slog.Int("record_count", written),
		slog.Duration("duration", time.Since(start)),
	)
	return written, nil
}

func (s *SQLiteOutput) write(ctx context.Context, table *detection.Table) (int, error) {
	if len(table.Columns) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.ClassifyDatabaseError(err, "begin", "")
	}
	defer func() { _ = tx.Rollback() }()

	if s.config.Overwrite {
		drop := "DROP TABLE IF EXISTS " + database.QuoteIdentifier(s.config.Table)
		if _, err := tx.ExecContext(ctx, drop); err != nil {
			return 0, database.ClassifyDatabaseError(err, "drop", drop)
		}
	}
	create := createTableSQL(s.config.Table, table)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, database.ClassifyDatabaseError(err, "create", create)
	}

	insert := insertSQL(s.config.Table, table.Columns)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, database.ClassifyDatabaseError(err, "prepare", insert)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]interface{}, len(table.Columns))
	for i, rec := range table.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		for j, col := range table.Columns {
			args[j] = rec[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, database.ClassifyDatabaseError(fmt.Errorf("row %d: %w", i, err), "insert", insert)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, database.ClassifyDatabaseError(err, "commit", "")
	}
	return table.Len(), nil
}

// columnAffinity picks REAL or TEXT from the first non-nil value of col.
func columnAffinity(table *detection.Table, col string) string {
	for _, rec := range table.Rows {
		v := rec[col]
		if v == nil {
			continue
		}
		if _, ok := detection.ToFloat(v); ok {
			return "REAL"
		}
		return "TEXT"
	}
	return "TEXT"
}

func createTableSQL(name string, table *detection.Table) string {
	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		defs[i] = database.QuoteIdentifier(col) + " " + columnAffinity(table, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		database.QuoteIdentifier(name), strings.Join(defs, ", "))
}

func insertSQL(name string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = database.QuoteIdentifier(col)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		database.QuoteIdentifier(name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// Preview implements PreviewableModule.
func (s *SQLiteOutput) Preview(table *detection.Table) Preview {
	return Preview{
		ModuleType:  "sqlite",
		Destination: s.config.Path + "#" + s.config.Table,
		RecordCount: table.Len(),
		Columns:     table.Columns,
	}
}

// Close releases the database handle.
func (s *SQLiteOutput) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ PreviewableModule = (*SQLiteOutput)(nil)
