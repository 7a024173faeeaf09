package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/pkg/survey"
)

// resetRegistries empties the registries and restores the built-ins when the test ends.
func resetRegistries(t *testing.T) {
	t.Helper()
	ClearRegistries()
	t.Cleanup(func() {
		ClearRegistries()
		RegisterBuiltins()
	})
}

func TestRegisterAndGet(t *testing.T) {
	resetRegistries(t)

	var calls []string
	RegisterInput("testInput", func(context.Context, survey.ModuleConfig) (input.Module, error) {
		calls = append(calls, "input")
		return nil, nil
	})
	RegisterFilter("testFilter", func(survey.ModuleConfig, int) (filter.Module, error) {
		calls = append(calls, "filter")
		return nil, nil
	})
	RegisterOutput("testOutput", func(context.Context, survey.ModuleConfig, errhandling.RetryConfig) (output.Module, error) {
		calls = append(calls, "output")
		return nil, nil
	})

	_, _ = GetInputConstructor("testInput")(context.Background(), survey.ModuleConfig{})
	_, _ = GetFilterConstructor("testFilter")(survey.ModuleConfig{}, 0)
	_, _ = GetOutputConstructor("testOutput")(context.Background(), survey.ModuleConfig{}, errhandling.RetryConfig{})

	want := []string{"input", "filter", "output"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestGetUnregisteredConstructor(t *testing.T) {
	resetRegistries(t)

	if got := GetInputConstructor("unknown"); got != nil {
		t.Error("expected nil for unregistered input type")
	}
	if got := GetFilterConstructor("unknown"); got != nil {
		t.Error("expected nil for unregistered filter type")
	}
	if got := GetOutputConstructor("unknown"); got != nil {
		t.Error("expected nil for unregistered output type")
	}
}

func TestOverwriteRegistration(t *testing.T) {
	resetRegistries(t)

	callCount := 0
	RegisterFilter("test", func(survey.ModuleConfig, int) (filter.Module, error) {
		callCount = 1
		return nil, nil
	})
	RegisterFilter("test", func(survey.ModuleConfig, int) (filter.Module, error) {
		callCount = 2
		return nil, nil
	})

	_, _ = GetFilterConstructor("test")(survey.ModuleConfig{}, 0)
	if callCount != 2 {
		t.Error("expected second constructor to be called after overwrite")
	}
}

func TestBuiltinTypes(t *testing.T) {
	tests := []struct {
		name string
		list func() []string
		want []string
	}{
		{"input", ListInputTypes, []string{"csv", "sqlite"}},
		{"filter", ListFilterTypes, []string{"activity", "brightLimit", "colourOffsets", "condition", "lightcurve", "magnitudeLimit", "removeColumns", "snrLimit"}},
		{"output", ListOutputTypes, []string{"console", "csv", "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.list(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("types = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuiltinFilterErrorsNameIndex(t *testing.T) {
	ctor := GetFilterConstructor("magnitudeLimit")
	_, err := ctor(survey.ModuleConfig{Type: "magnitudeLimit", Config: map[string]interface{}{}}, 3)
	if err == nil {
		t.Fatal("expected error for missing limit")
	}
	if got := err.Error(); got != "invalid magnitudeLimit config at index 3: 'limit' is required" {
		t.Errorf("error = %q", got)
	}
}

func TestBuiltinMagnitudeLimit(t *testing.T) {
	ctor := GetFilterConstructor("magnitudeLimit")
	module, err := ctor(survey.ModuleConfig{Type: "magnitudeLimit", Config: map[string]interface{}{"limit": 20.0}}, 0)
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	if _, ok := module.(*filter.MagnitudeLimitModule); !ok {
		t.Errorf("module type = %T", module)
	}
}
