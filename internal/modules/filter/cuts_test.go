package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/surveysim/runtime/pkg/detection"
)

func filterTable() *detection.Table {
	t := detection.NewTable("ObjID", "optFilter", "observedPSFMag", "SNR")
	t.Append(detection.Record{"ObjID": "a", "optFilter": "r", "observedPSFMag": 15.0, "SNR": 300.0})
	t.Append(detection.Record{"ObjID": "b", "optFilter": "g", "observedPSFMag": 16.5, "SNR": 120.0})
	t.Append(detection.Record{"ObjID": "c", "optFilter": "r", "observedPSFMag": 16.0, "SNR": 5.0})
	t.Append(detection.Record{"ObjID": "d", "optFilter": "y", "observedPSFMag": 14.0, "SNR": 2.0})
	return t
}

func ids(t *detection.Table) string {
	s := ""
	for _, r := range t.Rows {
		s += r["ObjID"].(string)
	}
	return s
}

func TestBrightLimit(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]interface{}
		want string
	}{
		{"scalar", map[string]interface{}{"limit": 16.0}, "b"},
		{"per filter", map[string]interface{}{"limits": map[string]interface{}{"r": 15.5, "g": 17.0}}, "cd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseBrightLimitConfig(tt.cfg)
			if err != nil {
				t.Fatalf("ParseBrightLimitConfig failed: %v", err)
			}
			m, err := NewBrightLimitFromConfig(cfg)
			if err != nil {
				t.Fatalf("NewBrightLimitFromConfig failed: %v", err)
			}
			out, err := m.Process(context.Background(), filterTable())
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if got := ids(out); got != tt.want {
				t.Errorf("kept %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBrightLimitConfigErrors(t *testing.T) {
	tests := []map[string]interface{}{
		{},
		{"limit": 16.0, "limits": map[string]interface{}{"r": 1.0}},
		{"limits": map[string]interface{}{}},
		{"limits": map[string]interface{}{"r": "x"}},
	}
	for _, cfg := range tests {
		if _, err := ParseBrightLimitConfig(cfg); err == nil {
			t.Errorf("expected error for %v", cfg)
		}
	}
}

func TestBrightLimitMissingFilterColumn(t *testing.T) {
	m, _ := NewBrightLimitFromConfig(BrightLimitConfig{Limits: map[string]float64{"r": 16}})
	_, err := m.Process(context.Background(), detection.NewTable("observedPSFMag"))
	if !errors.Is(err, detection.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestSNRLimit(t *testing.T) {
	m, err := NewSNRLimitFromConfig(map[string]interface{}{"limit": 5.0})
	if err != nil {
		t.Fatalf("NewSNRLimitFromConfig failed: %v", err)
	}
	out, err := m.Process(context.Background(), filterTable())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := ids(out); got != "ab" {
		t.Errorf("kept %q, want %q", got, "ab")
	}

	if _, err := NewSNRLimitFromConfig(map[string]interface{}{}); !errors.Is(err, ErrMissingLimit) {
		t.Errorf("expected ErrMissingLimit, got %v", err)
	}
	m2, _ := NewSNRLimitFromConfig(map[string]interface{}{"limit": 5.0, "column": "snr_r"})
	if _, err := m2.Process(context.Background(), filterTable()); !errors.Is(err, detection.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}
