// Package detection provides the in-memory detection table shared by every
// stage of the survey post-processing runtime.
//
// A Table is row-oriented: each row is a Record mapping column names to values,
// and the table carries an explicit, ordered column schema so that an empty
// table still knows its columns.
package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Well-known column names produced by the upstream survey simulation.
const (
	ColObjID            = "ObjID"
	ColFieldID          = "FieldID"
	ColFieldMJD         = "fieldMJD_TAI"
	ColFilter           = "optFilter"
	ColObservedPSFMag   = "observedPSFMag"
	ColTrailedSourceMag = "trailedSourceMag"
	ColSNR              = "SNR"
)

// ErrMissingColumn is returned when a stage requires a column the table does not have.
var ErrMissingColumn = errors.New("required column missing")

// Record is a single detection row.
type Record map[string]interface{}

// Table is an ordered collection of detection records with an ordered schema.
type Table struct {
	// Columns is the ordered column schema
	Columns []string
	// Rows holds the records in their original order
	Rows []Record
}

// NewTable creates an empty table with the given column schema.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: []Record{}}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the schema contains the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns returns an error wrapping ErrMissingColumn naming the first
// column in names that the schema lacks.
func (t *Table) RequireColumns(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, n)
		}
	}
	return nil
}

// AddColumn appends name to the schema if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Append adds a record to the end of the table.
func (t *Table) Append(rec Record) {
	t.Rows = append(t.Rows, rec)
}

// Float returns the numeric value of column in row i.
// The boolean is false when the row is out of range, the value is absent,
// or it is not numeric.
func (t *Table) Float(i int, column string) (float64, bool) {
	if i < 0 || i >= t.Len() {
		return 0, false
	}
	return t.Rows[i].Float(column)
}

// Float returns the numeric value of column in the record.
func (r Record) Float(column string) (float64, bool) {
	v, ok := r[column]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat converts the numeric types a table may hold to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return math.NaN(), false
	}
}

// Select returns a new table with the same schema holding, in their original
// order, the rows for which keep returns true. Rows are shared with the
// receiver, not copied; the receiver is never modified.
func (t *Table) Select(keep func(Record) bool) *Table {
	if t == nil {
		return NewTable()
	}
	out := NewTable(t.Columns...)
	for _, rec := range t.Rows {
		if keep(rec) {
			out.Rows = append(out.Rows, rec)
		}
	}
	return out
}

// Clone returns a deep copy of the schema and a shallow copy of every record
// map, so column values can be reassigned on the clone without touching t.
func (t *Table) Clone() *Table {
	if t == nil {
		return NewTable()
	}
	out := NewTable(t.Columns...)
	out.Rows = make([]Record, len(t.Rows))
	for i, rec := range t.Rows {
		cp := make(Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Column returns the values of one column in row order.
// Missing values are returned as nil. A nil table yields an empty slice.
func (t *Table) Column(name string) []interface{} {
	if t == nil {
		return []interface{}{}
	}
	values := make([]interface{}, len(t.Rows))
	for i, rec := range t.Rows {
		values[i] = rec[name]
	}
	return values
}
