package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/pkg/survey"
)

func TestCreateInputModule_Nil(t *testing.T) {
	got, err := CreateInputModule(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nil config")
	}
}

func TestCreateInputModule_CSV(t *testing.T) {
	cfg := &survey.ModuleConfig{Type: "csv", Config: map[string]interface{}{"path": "detections.csv"}}

	got, err := CreateInputModule(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(*input.CSVInput); !ok {
		t.Errorf("module type = %T, want *input.CSVInput", got)
	}
}

func TestCreateModules_UnknownType(t *testing.T) {
	ctx := context.Background()
	unknown := survey.ModuleConfig{Type: "kafka"}

	_, inErr := CreateInputModule(ctx, &unknown)
	_, filterErr := CreateFilterModules([]survey.ModuleConfig{unknown})
	_, outErr := CreateOutputModule(ctx, &unknown, errhandling.DefaultRetryConfig())

	for name, err := range map[string]error{"input": inErr, "filter": filterErr, "output": outErr} {
		if !errors.Is(err, ErrUnknownModuleType) {
			t.Errorf("%s: expected ErrUnknownModuleType, got %v", name, err)
		}
		if errhandling.GetErrorCategory(err) != errhandling.CategoryConfig {
			t.Errorf("%s: expected config category, got %s", name, errhandling.GetErrorCategory(err))
		}
	}
}

func TestCreateFilterModules_Empty(t *testing.T) {
	got, err := CreateFilterModules(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for empty config")
	}
}

func TestCreateFilterModules_Chain(t *testing.T) {
	cfgs := []survey.ModuleConfig{
		{Type: "brightLimit", Config: map[string]interface{}{"limit": 16.0}},
		{Type: "magnitudeLimit", Config: map[string]interface{}{"limit": 24.5}},
		{Type: "snrLimit", Config: map[string]interface{}{"limit": 5.0}},
		{Type: "condition", Config: map[string]interface{}{"expression": "optFilter != 'u'"}},
		{Type: "lightcurve", Config: map[string]interface{}{"model": "identity"}},
	}

	got, err := CreateFilterModules(cfgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(cfgs) {
		t.Fatalf("expected %d modules, got %d", len(cfgs), len(got))
	}
	if _, ok := got[1].(*filter.MagnitudeLimitModule); !ok {
		t.Errorf("module[1] type = %T, want *filter.MagnitudeLimitModule", got[1])
	}
}

func TestCreateFilterModules_InvalidConfig(t *testing.T) {
	cfgs := []survey.ModuleConfig{
		{Type: "magnitudeLimit", Config: map[string]interface{}{"limit": 24.5}},
		{Type: "magnitudeLimit"},
	}

	_, err := CreateFilterModules(cfgs)
	if !errors.Is(err, filter.ErrMissingLimit) {
		t.Fatalf("expected ErrMissingLimit, got %v", err)
	}
	if errhandling.GetErrorCategory(err) != errhandling.CategoryConfig {
		t.Errorf("expected config category, got %s", errhandling.GetErrorCategory(err))
	}
}

func TestCreateOutputModule(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  survey.ModuleConfig
		want interface{}
	}{
		{"csv", survey.ModuleConfig{Type: "csv", Config: map[string]interface{}{"path": filepath.Join(dir, "out.csv")}}, &output.CSVOutput{}},
		{"sqlite", survey.ModuleConfig{Type: "sqlite", Config: map[string]interface{}{"path": filepath.Join(dir, "out.db"), "table": "detections"}}, &output.SQLiteOutput{}},
		{"console", survey.ModuleConfig{Type: "console", Config: map[string]interface{}{}}, &output.ConsoleOutput{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateOutputModule(context.Background(), &tt.cfg, errhandling.DefaultRetryConfig())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() { _ = got.Close() }()

			switch tt.want.(type) {
			case *output.CSVOutput:
				_, ok := got.(*output.CSVOutput)
				assertTrue(t, ok, got)
			case *output.SQLiteOutput:
				_, ok := got.(*output.SQLiteOutput)
				assertTrue(t, ok, got)
			case *output.ConsoleOutput:
				_, ok := got.(*output.ConsoleOutput)
				assertTrue(t, ok, got)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "out.db")); err != nil {
		t.Errorf("sqlite output should create its database: %v", err)
	}
}

func assertTrue(t *testing.T, ok bool, got interface{}) {
	t.Helper()
	if !ok {
		t.Errorf("unexpected module type %T", got)
	}
}

func TestRetryConfigFor(t *testing.T) {
	if got := RetryConfigFor(nil); got != errhandling.DefaultRetryConfig() {
		t.Errorf("nil error handling = %+v, want defaults", got)
	}

	got := RetryConfigFor(&survey.ErrorHandling{RetryCount: 5, RetryDelay: 250})
	if got.MaxAttempts != 5 || got.DelayMs != 250 {
		t.Errorf("RetryConfigFor = %+v", got)
	}
	if got.BackoffMultiplier != errhandling.DefaultBackoffMultiplier {
		t.Errorf("backoff multiplier should keep its default, got %v", got.BackoffMultiplier)
	}
}
