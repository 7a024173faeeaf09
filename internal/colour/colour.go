// Package colour moves absolute magnitudes from an object's main filter into
// the filter of each detection using per-object colour offsets.
//
// A colour table holds one row per object with an H_<main> column and one
// "<x>-<main>" column for every other observing filter x.
package colour

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/internal/tableio"
	"github.com/surveysim/runtime/pkg/detection"
)

// HPrefix prefixes absolute-magnitude columns (H_r, H_g, ...).
const HPrefix = "H_"

// ColHFilter is the column Apply adds: H in the detection's own filter.
const ColHFilter = "H_filter"

var (
	// ErrNoMainFilter is returned when no H_<filter> column exists.
	ErrNoMainFilter = errors.New("no H_<filter> column found")
	// ErrMultipleMainFilters is returned when more than one H_<filter> column exists.
	ErrMultipleMainFilters = errors.New("more than one H_<filter> column found")
	// ErrMainFilterNotObserved is returned when the main filter is not an observing filter.
	ErrMainFilterNotObserved = errors.New("main filter is not among the observing filters")
	// ErrMissingOffset is returned when a required colour offset column is absent.
	ErrMissingOffset = errors.New("colour offset column missing")
	// ErrUnknownObject is returned when a detection's object has no colour row.
	ErrUnknownObject = errors.New("object not found in colour table")
	// ErrUnknownFilter is returned when a lookup names a filter with no offset.
	ErrUnknownFilter = errors.New("no colour offset for filter")
	// ErrDuplicateObject is returned when two colour rows share an ObjID.
	ErrDuplicateObject = errors.New("duplicate ObjID in colour table")
)

// MainFilterAndOffsets finds the single H_<main> column in columns and
// returns main plus the offset column names "<x>-<main>" for every observing
// filter x other than main, in the order given.
func MainFilterAndOffsets(columns []string, observingFilters []string) (string, []string, error) {
	var mains []string
	for _, c := range columns {
		if strings.HasPrefix(c, HPrefix) && len(c) > len(HPrefix) && c != ColHFilter {
			mains = append(mains, strings.TrimPrefix(c, HPrefix))
		}
	}
	switch len(mains) {
	case 0:
		return "", nil, ErrNoMainFilter
	case 1:
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrMultipleMainFilters, strings.Join(mains, ", "))
	}
	main := mains[0]

	observed := false
	for _, f := range observingFilters {
		if f == main {
			observed = true
			break
		}
	}
	if !observed {
		return "", nil, fmt.Errorf("%w: %q not in %v", ErrMainFilterNotObserved, main, observingFilters)
	}

	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	offsets := make([]string, 0, len(observingFilters)-1)
	for _, f := range observingFilters {
		if f == main {
			continue
		}
		col := f + "-" + main
		if !have[col] {
			return "", nil, fmt.Errorf("%w: %q", ErrMissingOffset, col)
		}
		offsets = append(offsets, col)
	}
	return main, offsets, nil
}

// Table holds per-object colours keyed by ObjID.
type Table struct {
	main    string
	offsets []string
	h       map[string]float64
	colours map[string]map[string]float64
}

// NewTable indexes a loaded colour table by ObjID.
func NewTable(t *detection.Table, observingFilters []string) (*Table, error) {
	if err := t.RequireColumns(detection.ColObjID); err != nil {
		return nil, err
	}
	main, offsets, err := MainFilterAndOffsets(t.Columns, observingFilters)
	if err != nil {
		return nil, err
	}

	hCol := HPrefix + main
	ct := &Table{
		main:    main,
		offsets: offsets,
		h:       make(map[string]float64, t.Len()),
		colours: make(map[string]map[string]float64, t.Len()),
	}
	for i, rec := range t.Rows {
		id := fmt.Sprint(rec[detection.ColObjID])
		if _, dup := ct.h[id]; dup {
			return nil, errhandling.NewDataError(fmt.Sprintf("colour row %d: duplicate ObjID %q", i, id), ErrDuplicateObject)
		}
		h, ok := rec.Float(hCol)
		if !ok {
			return nil, errhandling.NewDataError(fmt.Sprintf("colour row %d (%s): %s is not numeric", i, id, hCol), nil)
		}
		byFilter := make(map[string]float64, len(offsets))
		for _, col := range offsets {
			v, ok := rec.Float(col)
			if !ok {
				return nil, errhandling.NewDataError(fmt.Sprintf("colour row %d (%s): %s is not numeric", i, id, col), nil)
			}
			byFilter[strings.TrimSuffix(col, "-"+main)] = v
		}
		ct.h[id] = h
		ct.colours[id] = byFilter
	}
	return ct, nil
}

// Load reads a colour file and indexes it. delimiter follows tableio.Options.
func Load(path string, observingFilters []string, delimiter string) (*Table, error) {
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening colour file: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := tableio.ReadDelimited(f, tableio.Options{Delimiter: delimiter})
	if err != nil {
		return nil, fmt.Errorf("reading colour file %q: %w", path, err)
	}
	ct, err := NewTable(raw, observingFilters)
	if err != nil {
		return nil, fmt.Errorf("colour file %q: %w", path, err)
	}
	logger.Debug("colour table loaded",
		slog.String("path", path),
		slog.String("main_filter", ct.main),
		slog.Int("objects", len(ct.h)),
	)
	return ct, nil
}

// MainFilter returns the filter the absolute magnitudes are given in.
func (c *Table) MainFilter() string {
	return c.main
}

// Len returns the number of objects.
func (c *Table) Len() int {
	return len(c.h)
}

// Lookup returns the colour offset of objID for filter. The main filter has
// an offset of zero.
func (c *Table) Lookup(objID, filter string) (float64, error) {
	byFilter, ok := c.colours[objID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownObject, objID)
	}
	if filter == c.main {
		return 0, nil
	}
	v, ok := byFilter[filter]
	if !ok {
		return 0, fmt.Errorf("%w: %q (object %q)", ErrUnknownFilter, filter, objID)
	}
	return v, nil
}

// H returns the absolute magnitude of objID in filter.
func (c *Table) H(objID, filter string) (float64, error) {
	offset, err := c.Lookup(objID, filter)
	if err != nil {
		return 0, err
	}
	return c.h[objID] + offset, nil
}

// Apply returns a copy of det with an H_filter column holding each
// detection's absolute magnitude in its optFilter. det is not modified.
func Apply(det *detection.Table, colours *Table) (*detection.Table, error) {
	if err := det.RequireColumns(detection.ColObjID, detection.ColFilter); err != nil {
		return nil, err
	}
	out := det.Clone()
	out.AddColumn(ColHFilter)
	for i, rec := range out.Rows {
		id := fmt.Sprint(rec[detection.ColObjID])
		filter := fmt.Sprint(rec[detection.ColFilter])
		h, err := colours.H(id, filter)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		rec[ColHFilter] = h
	}
	return out, nil
}
