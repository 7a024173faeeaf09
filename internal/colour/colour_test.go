package colour

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/pkg/detection"
)

func TestMainFilterAndOffsets(t *testing.T) {
	tests := []struct {
		name        string
		columns     []string
		filters     []string
		wantMain    string
		wantOffsets []string
		wantErr     error
	}{
		{
			name:        "r main",
			columns:     []string{"ObjID", "H_r", "u-r", "g-r", "i-r", "z-r"},
			filters:     []string{"r", "g", "i", "z", "u"},
			wantMain:    "r",
			wantOffsets: []string{"g-r", "i-r", "z-r", "u-r"},
		},
		{
			name:        "single filter",
			columns:     []string{"ObjID", "H_g"},
			filters:     []string{"g"},
			wantMain:    "g",
			wantOffsets: []string{},
		},
		{
			name:    "no H column",
			columns: []string{"ObjID", "g-r"},
			filters: []string{"r"},
			wantErr: ErrNoMainFilter,
		},
		{
			name:    "two H columns",
			columns: []string{"ObjID", "H_r", "H_g"},
			filters: []string{"r", "g"},
			wantErr: ErrMultipleMainFilters,
		},
		{
			name:    "main not observed",
			columns: []string{"ObjID", "H_y", "g-y"},
			filters: []string{"g"},
			wantErr: ErrMainFilterNotObserved,
		},
		{
			name:    "missing offset",
			columns: []string{"ObjID", "H_r", "g-r"},
			filters: []string{"r", "g", "i"},
			wantErr: ErrMissingOffset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, offsets, err := MainFilterAndOffsets(tt.columns, tt.filters)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if main != tt.wantMain {
				t.Errorf("main = %q, want %q", main, tt.wantMain)
			}
			if !reflect.DeepEqual(offsets, tt.wantOffsets) {
				t.Errorf("offsets = %v, want %v", offsets, tt.wantOffsets)
			}
		})
	}
}

func colourFixture() *detection.Table {
	ct := detection.NewTable("ObjID", "H_r", "g-r", "i-r")
	ct.Append(detection.Record{"ObjID": "a", "H_r": 15.0, "g-r": 0.5, "i-r": -0.2})
	ct.Append(detection.Record{"ObjID": "b", "H_r": 18.0, "g-r": 0.7, "i-r": -0.3})
	return ct
}

func TestTableLookup(t *testing.T) {
	ct, err := NewTable(colourFixture(), []string{"r", "g", "i"})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if ct.MainFilter() != "r" || ct.Len() != 2 {
		t.Errorf("main=%q len=%d", ct.MainFilter(), ct.Len())
	}

	if v, err := ct.Lookup("a", "r"); err != nil || v != 0 {
		t.Errorf("main filter lookup = %v, %v", v, err)
	}
	if v, err := ct.Lookup("b", "g"); err != nil || v != 0.7 {
		t.Errorf("g lookup = %v, %v", v, err)
	}
	if _, err := ct.Lookup("zz", "g"); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("expected ErrUnknownObject, got %v", err)
	}
	if _, err := ct.Lookup("a", "y"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}
}

func TestNewTableRejectsBadRows(t *testing.T) {
	dup := colourFixture()
	dup.Append(detection.Record{"ObjID": "a", "H_r": 16.0, "g-r": 0.1, "i-r": 0.1})
	_, err := NewTable(dup, []string{"r", "g", "i"})
	if !errors.Is(err, ErrDuplicateObject) {
		t.Fatalf("error = %v, want ErrDuplicateObject", err)
	}
	if !strings.Contains(err.Error(), `"a"`) {
		t.Errorf("error %q should name the object", err)
	}
	if errhandling.GetErrorCategory(err) != errhandling.CategoryData {
		t.Errorf("category = %s, want data", errhandling.GetErrorCategory(err))
	}

	bad := colourFixture()
	bad.Rows[1]["g-r"] = "blue"
	_, err = NewTable(bad, []string{"r", "g", "i"})
	if err == nil || !strings.Contains(err.Error(), "g-r is not numeric") {
		t.Fatalf("error = %v, want non-numeric g-r", err)
	}
	if errhandling.GetErrorCategory(err) != errhandling.CategoryData {
		t.Errorf("category = %s, want data", errhandling.GetErrorCategory(err))
	}
}

func TestApply(t *testing.T) {
	ct, err := NewTable(colourFixture(), []string{"r", "g", "i"})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	det := detection.NewTable("ObjID", "optFilter", "observedPSFMag")
	det.Append(detection.Record{"ObjID": "a", "optFilter": "g", "observedPSFMag": 20.0})
	det.Append(detection.Record{"ObjID": "b", "optFilter": "r", "observedPSFMag": 21.0})
	det.Append(detection.Record{"ObjID": "a", "optFilter": "i", "observedPSFMag": 22.0})

	out, err := Apply(det, ct)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []float64{15.5, 18.0, 14.8}
	for i, w := range want {
		got, _ := out.Float(i, ColHFilter)
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("row %d: H_filter = %v, want %v", i, got, w)
		}
	}
	if !out.HasColumn(ColHFilter) {
		t.Error("H_filter missing from schema")
	}
	if det.HasColumn(ColHFilter) || det.Rows[0][ColHFilter] != nil {
		t.Error("Apply modified its input")
	}

	det.Append(detection.Record{"ObjID": "ghost", "optFilter": "r"})
	if _, err := Apply(det, ct); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("expected ErrUnknownObject, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colours.txt")
	content := "ObjID H_r g-r\n  a  15.0  0.5\n  b  18.0  0.7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	ct, err := Load(path, []string{"g", "r"}, "whitespace")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if h, err := ct.H("b", "g"); err != nil || math.Abs(h-18.7) > 1e-9 {
		t.Errorf("H(b, g) = %v, %v", h, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt"), []string{"r"}, ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
