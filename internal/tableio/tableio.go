// Package tableio reads and writes detection tables as delimited text.
//
// Two layouts are supported: character-delimited files (comma by default,
// any single rune otherwise) handled by encoding/csv, and whitespace-aligned
// files where any run of spaces or tabs separates fields.
package tableio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surveysim/runtime/pkg/detection"
)

// DelimiterWhitespace selects whitespace-separated parsing.
const DelimiterWhitespace = "whitespace"

// DefaultStringColumns are kept as strings even when they look numeric.
var DefaultStringColumns = []string{detection.ColObjID, detection.ColFilter}

var (
	// ErrEmptyInput is returned when the input has no header row.
	ErrEmptyInput = errors.New("table has no header row")
	// ErrInvalidDelimiter is returned for delimiters that are neither
	// "whitespace" nor a single character.
	ErrInvalidDelimiter = errors.New("delimiter must be a single character or \"whitespace\"")
	// ErrDuplicateColumn is returned when a header names a column twice.
	ErrDuplicateColumn = errors.New("duplicate column in header")
	// ErrUnwritableField is returned when a whitespace table would contain
	// a field with embedded whitespace.
	ErrUnwritableField = errors.New("field cannot be written to a whitespace table")
)

// NullToken stands for a missing value in whitespace tables, where an empty
// field would shift the columns.
const NullToken = "NaN"

// Options controls how a delimited table is parsed.
type Options struct {
	// Delimiter is "," (default), "whitespace", or any single character.
	Delimiter string
	// StringColumns are never converted to numbers. Nil means DefaultStringColumns.
	StringColumns []string
}

func (o Options) stringSet() map[string]bool {
	cols := o.StringColumns
	if cols == nil {
		cols = DefaultStringColumns
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

// ParseDelimiter maps a configured delimiter string to a rune.
// The second result is true for whitespace mode.
func ParseDelimiter(d string) (rune, bool, error) {
	switch {
	case d == "":
		return ',', false, nil
	case strings.EqualFold(d, DelimiterWhitespace):
		return 0, true, nil
	case d == `\t`:
		return '\t', false, nil
	case utf8.RuneCountInString(d) == 1:
		r, _ := utf8.DecodeRuneInString(d)
		return r, false, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidDelimiter, d)
	}
}

// ReadDelimited parses a table whose first row is the header.
// Every data row must have exactly as many fields as the header.
func ReadDelimited(r io.Reader, opts Options) (*detection.Table, error) {
	comma, whitespace, err := ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if whitespace {
		rows, err = readWhitespace(r)
	} else {
		rows, err = readCSV(r, comma)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = true
		header[i] = h
	}

	strs := opts.stringSet()
	table := detection.NewTable(header...)
	table.Rows = make([]detection.Record, 0, len(rows)-1)
	for n, fields := range rows[1:] {
		if len(fields) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", n+2, len(header), len(fields))
		}
		rec := make(detection.Record, len(header))
		for i, col := range header {
			field := strings.TrimSpace(fields[i])
			if whitespace && field == NullToken {
				field = ""
			}
			rec[col] = parseValue(field, strs[col])
		}
		table.Append(rec)
	}
	return table, nil
}

func readCSV(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing delimited table: %w", err)
	}
	return rows, nil
}

func readWhitespace(r io.Reader) ([][]string, error) {
	var rows [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, strings.Fields(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading whitespace table: %w", err)
	}
	return rows, nil
}

// parseValue converts a field to float64 when it parses as a number.
// Empty fields become nil.
func parseValue(s string, keepString bool) interface{} {
	if s == "" {
		return nil
	}
	if keepString {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// WriteDelimited writes the header and every row in schema order.
// Floats use the shortest representation that round-trips; nil is written
// as an empty field, or as NullToken in whitespace mode.
func WriteDelimited(w io.Writer, table *detection.Table, delimiter string) error {
	comma, whitespace, err := ParseDelimiter(delimiter)
	if err != nil {
		return err
	}
	if whitespace {
		return writeWhitespace(w, table)
	}

	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	fields := make([]string, len(table.Columns))
	for _, rec := range table.Rows {
		for i, col := range table.Columns {
			fields[i] = FormatValue(rec[col])
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeWhitespace joins fields with single spaces. readWhitespace splits on
// any whitespace, so fields containing it are rejected rather than quoted.
func writeWhitespace(w io.Writer, table *detection.Table) error {
	bw := bufio.NewWriter(w)
	for _, col := range table.Columns {
		if col == "" || strings.ContainsFunc(col, unicode.IsSpace) {
			return fmt.Errorf("writing header: %w: column %q", ErrUnwritableField, col)
		}
	}
	if _, err := bw.WriteString(strings.Join(table.Columns, " ") + "\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	fields := make([]string, len(table.Columns))
	for n, rec := range table.Rows {
		for i, col := range table.Columns {
			f := FormatValue(rec[col])
			switch {
			case f == "":
				f = NullToken
			case strings.ContainsFunc(f, unicode.IsSpace):
				return fmt.Errorf("writing row %d: %w: %s=%q", n, ErrUnwritableField, col, f)
			}
			fields[i] = f
		}
		if _, err := bw.WriteString(strings.Join(fields, " ") + "\n"); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	return bw.Flush()
}

// FormatValue renders one table value as text.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
