// Package database opens sqlite detection databases and classifies their errors.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
)

// Driver is the database/sql driver name registered by go-sqlite3.
const Driver = "sqlite3"

// DefaultBusyTimeout is how long sqlite waits on a locked database before
// returning SQLITE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// Config holds connection settings for a sqlite database file.
type Config struct {
	Path        string
	ReadOnly    bool
	BusyTimeout time.Duration
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects table names that cannot be used unquoted.
func ValidateIdentifier(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q: must match %s", name, identifierRe.String())
	}
	return nil
}

// QuoteIdentifier double-quotes a column name for use in SQL.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DSN builds the go-sqlite3 connection string for cfg. The path is
// percent-encoded so that '?', '#' and '%' in file names reach sqlite intact.
func (c Config) DSN() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", timeout.Milliseconds()))
	if c.ReadOnly {
		q.Set("mode", "ro")
	}
	return "file:" + (&url.URL{Path: c.Path}).EscapedPath() + "?" + q.Encode()
}

// Open opens and pings the database. The caller closes the returned *sql.DB.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := pathutil.ValidateFilePath(cfg.Path); err != nil {
		return nil, NewDatabaseError(CategoryConnection, "open", err.Error(), err, false)
	}
	db, err := sql.Open(Driver, cfg.DSN())
	if err != nil {
		return nil, ClassifyDatabaseError(err, "open", "")
	}
	// sqlite serializes writers; one connection avoids self-inflicted SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ClassifyDatabaseError(err, "open", "")
	}
	logger.Debug("sqlite database opened",
		slog.String("path", cfg.Path),
		slog.Bool("read_only", cfg.ReadOnly),
	)
	return db, nil
}
