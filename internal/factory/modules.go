// Package factory provides module creation functions for the pipeline runtime.
// It centralizes the logic for instantiating input, filter, and output modules
// from their configuration using the module registry.
//
// # Module Creation
//
// The factory uses the registry package to look up module constructors by type.
// Built-in modules are registered automatically at startup. Unknown types are
// a configuration error.
//
// # Adding New Module Types
//
// To add a new module type, see the documentation in internal/registry.
// You do NOT need to modify this factory; just register your constructor.
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/internal/registry"
	"github.com/surveysim/runtime/pkg/survey"
)

// ErrUnknownModuleType is returned when no constructor is registered for a type.
var ErrUnknownModuleType = errors.New("unknown module type")

// CreateInputModule creates an input module instance from configuration.
// Returns nil, nil for a nil configuration.
func CreateInputModule(ctx context.Context, cfg *survey.ModuleConfig) (input.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetInputConstructor(cfg.Type)
	if constructor == nil {
		return nil, unknownType("input", cfg.Type, registry.ListInputTypes())
	}
	module, err := constructor(ctx, *cfg)
	if err != nil {
		return nil, constructionError(err)
	}
	return module, nil
}

// CreateFilterModules creates filter module instances from configuration,
// in pipeline order.
func CreateFilterModules(cfgs []survey.ModuleConfig) ([]filter.Module, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	modules := make([]filter.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		module, err := createSingleFilterModule(cfg, i)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// createSingleFilterModule creates a single filter module based on its type.
func createSingleFilterModule(cfg survey.ModuleConfig, index int) (filter.Module, error) {
	constructor := registry.GetFilterConstructor(cfg.Type)
	if constructor == nil {
		return nil, unknownType(fmt.Sprintf("filter %d", index), cfg.Type, registry.ListFilterTypes())
	}
	if cfg.Config == nil {
		cfg.Config = map[string]interface{}{}
	}
	module, err := constructor(cfg, index)
	if err != nil {
		return nil, constructionError(err)
	}
	return module, nil
}

// CreateOutputModule creates an output module instance from configuration.
// Returns nil, nil for a nil configuration.
func CreateOutputModule(ctx context.Context, cfg *survey.ModuleConfig, retry errhandling.RetryConfig) (output.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetOutputConstructor(cfg.Type)
	if constructor == nil {
		return nil, unknownType("output", cfg.Type, registry.ListOutputTypes())
	}
	module, err := constructor(ctx, *cfg, retry)
	if err != nil {
		return nil, constructionError(err)
	}
	return module, nil
}

func unknownType(stage, moduleType string, available []string) error {
	err := fmt.Errorf("%s: %w %q (available: %v)", stage, ErrUnknownModuleType, moduleType, available)
	return errhandling.NewConfigError(err.Error(), err)
}

// constructionError classifies a constructor failure. Anything that is not
// an I/O, database or plugin failure is treated as bad configuration.
func constructionError(err error) error {
	if errhandling.GetErrorCategory(err) != errhandling.CategoryUnknown {
		return err
	}
	return errhandling.NewConfigError(err.Error(), err)
}

// RetryConfigFor derives the output retry policy from the pipeline's error
// handling block. A nil block yields the defaults.
func RetryConfigFor(eh *survey.ErrorHandling) errhandling.RetryConfig {
	if eh == nil {
		return errhandling.DefaultRetryConfig()
	}
	return errhandling.ParseRetryConfig(map[string]interface{}{
		"retryCount": eh.RetryCount,
		"retryDelay": eh.RetryDelay,
	})
}
