// Package registry provides module registries for the survey runtime.
// This file registers all built-in modules during initialization.
package registry

import (
	"context"
	"fmt"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/pkg/survey"
)

func init() {
	RegisterBuiltins()
}

// RegisterBuiltins registers every built-in module type. It is called from
// init and may be called again by tests after ClearRegistries.
func RegisterBuiltins() {
	registerBuiltinInputModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
}

// registerBuiltinInputModules registers all built-in input module types.
func registerBuiltinInputModules() {
	// csv - delimited detection file
	RegisterInput("csv", func(_ context.Context, cfg survey.ModuleConfig) (input.Module, error) {
		c, err := input.ParseCSVConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid csv input config: %w", err)
		}
		return input.NewCSVInputFromConfig(c), nil
	})

	// sqlite - query against a sqlite database
	RegisterInput("sqlite", func(ctx context.Context, cfg survey.ModuleConfig) (input.Module, error) {
		c, err := input.ParseSQLiteConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid sqlite input config: %w", err)
		}
		module, err := input.NewSQLiteInputFromConfig(ctx, c)
		if err != nil {
			return nil, err
		}
		return module, nil
	})
}

// registerBuiltinFilterModules registers all built-in filter module types.
func registerBuiltinFilterModules() {
	// magnitudeLimit - faint-end sensitivity cut
	RegisterFilter("magnitudeLimit", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseMagnitudeLimitConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid magnitudeLimit config at index %d: %w", index, err)
		}
		module, err := filter.NewMagnitudeLimitFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid magnitudeLimit config at index %d: %w", index, err)
		}
		return module, nil
	})

	// brightLimit - saturation cut
	RegisterFilter("brightLimit", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseBrightLimitConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid brightLimit config at index %d: %w", index, err)
		}
		module, err := filter.NewBrightLimitFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid brightLimit config at index %d: %w", index, err)
		}
		return module, nil
	})

	// snrLimit - signal-to-noise cut
	RegisterFilter("snrLimit", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		module, err := filter.NewSNRLimitFromConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid snrLimit config at index %d: %w", index, err)
		}
		return module, nil
	})

	// removeColumns - drop columns before output
	RegisterFilter("removeColumns", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseRemoveColumnsConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid removeColumns config at index %d: %w", index, err)
		}
		module, err := filter.NewRemoveColumnsFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid removeColumns config at index %d: %w", index, err)
		}
		return module, nil
	})

	// condition - expression cut
	RegisterFilter("condition", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseConditionConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		module, err := filter.NewConditionFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		return module, nil
	})

	// colourOffsets - per-object colour lookup into H_filter
	RegisterFilter("colourOffsets", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseColourOffsetsConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid colourOffsets config at index %d: %w", index, err)
		}
		module, err := filter.NewColourOffsetsFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid colourOffsets config at index %d: %w", index, err)
		}
		return module, nil
	})

	// lightcurve - brightness adjustment from a lightcurve model
	RegisterFilter("lightcurve", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseBrightnessConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid lightcurve config at index %d: %w", index, err)
		}
		module, err := filter.NewLightcurveFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid lightcurve config at index %d: %w", index, err)
		}
		return module, nil
	})

	// activity - brightness adjustment from an activity model
	RegisterFilter("activity", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
		c, err := filter.ParseBrightnessConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid activity config at index %d: %w", index, err)
		}
		module, err := filter.NewActivityFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("invalid activity config at index %d: %w", index, err)
		}
		return module, nil
	})
}

// registerBuiltinOutputModules registers all built-in output module types.
func registerBuiltinOutputModules() {
	// csv - delimited detection file
	RegisterOutput("csv", func(_ context.Context, cfg survey.ModuleConfig, _ errhandling.RetryConfig) (output.Module, error) {
		c, err := output.ParseCSVConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid csv output config: %w", err)
		}
		return output.NewCSVOutputFromConfig(c), nil
	})

	// sqlite - table in a sqlite database
	RegisterOutput("sqlite", func(_ context.Context, cfg survey.ModuleConfig, retry errhandling.RetryConfig) (output.Module, error) {
		c, err := output.ParseSQLiteConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid sqlite output config: %w", err)
		}
		module, err := output.NewSQLiteOutputFromConfig(c, retry)
		if err != nil {
			return nil, err
		}
		return module, nil
	})

	// console - print the first rows
	RegisterOutput("console", func(_ context.Context, cfg survey.ModuleConfig, _ errhandling.RetryConfig) (output.Module, error) {
		module, err := output.NewConsoleFromConfig(cfg.Config)
		if err != nil {
			return nil, fmt.Errorf("invalid console output config: %w", err)
		}
		return module, nil
	})
}
