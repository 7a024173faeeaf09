// Package registry provides module registries for input, filter, and output modules.
//
// # Overview
//
// Pipeline configurations name their modules by type string ("csv",
// "magnitudeLimit", "sqlite", ...). Modules register their constructors under
// that string and the factory resolves them here, so a new cut or sink does
// not require touching the factory.
//
// # Adding a New Module
//
// To add a new filter module type (e.g., a "trailingLoss" cut):
//
//  1. Implement filter.Module
//  2. Create a constructor function matching FilterConstructor
//  3. Register the constructor in an init() function
//
// Example:
//
//	func init() {
//	    registry.RegisterFilter("trailingLoss", func(cfg survey.ModuleConfig, index int) (filter.Module, error) {
//	        return NewTrailingLoss(cfg.Config)
//	    })
//	}
//
// # Built-in Modules
//
// Built-in modules (csv and sqlite inputs; magnitudeLimit, brightLimit,
// snrLimit, condition, colourOffsets, lightcurve and activity filters; csv,
// sqlite and console outputs) are registered by builtins.go.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/modules/filter"
	"github.com/surveysim/runtime/internal/modules/input"
	"github.com/surveysim/runtime/internal/modules/output"
	"github.com/surveysim/runtime/pkg/survey"
)

// InputConstructor creates an input module from configuration.
type InputConstructor func(ctx context.Context, cfg survey.ModuleConfig) (input.Module, error)

// FilterConstructor creates a filter module from configuration.
// index is the filter's position in the pipeline and is used in error messages.
type FilterConstructor func(cfg survey.ModuleConfig, index int) (filter.Module, error)

// OutputConstructor creates an output module from configuration.
// retry is the pipeline-level retry policy for transient write failures.
type OutputConstructor func(ctx context.Context, cfg survey.ModuleConfig, retry errhandling.RetryConfig) (output.Module, error)

// inputRegistry holds registered input module constructors.
var (
	inputMu       sync.RWMutex
	inputRegistry = make(map[string]InputConstructor)
)

// filterRegistry holds registered filter module constructors.
var (
	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)
)

// outputRegistry holds registered output module constructors.
var (
	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterInput registers an input module constructor by type string.
// Calling RegisterInput with an already registered type will overwrite
// the previous constructor.
func RegisterInput(moduleType string, constructor InputConstructor) {
	inputMu.Lock()
	defer inputMu.Unlock()
	inputRegistry[moduleType] = constructor
}

// RegisterFilter registers a filter module constructor by type string.
// Calling RegisterFilter with an already registered type will overwrite
// the previous constructor.
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[moduleType] = constructor
}

// RegisterOutput registers an output module constructor by type string.
// Calling RegisterOutput with an already registered type will overwrite
// the previous constructor.
func RegisterOutput(moduleType string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[moduleType] = constructor
}

// GetInputConstructor returns the registered constructor for an input module type.
// Returns nil if no constructor is registered for the given type.
func GetInputConstructor(moduleType string) InputConstructor {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return inputRegistry[moduleType]
}

// GetFilterConstructor returns the registered constructor for a filter module type.
// Returns nil if no constructor is registered for the given type.
func GetFilterConstructor(moduleType string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[moduleType]
}

// GetOutputConstructor returns the registered constructor for an output module type.
// Returns nil if no constructor is registered for the given type.
func GetOutputConstructor(moduleType string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[moduleType]
}

// ListInputTypes returns all registered input module type names, sorted.
func ListInputTypes() []string {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return sortedKeys(inputRegistry)
}

// ListFilterTypes returns all registered filter module type names, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListOutputTypes returns all registered output module type names, sorted.
func ListOutputTypes() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearRegistries removes all registered constructors.
// This is intended for testing purposes only; call RegisterBuiltins to restore.
func ClearRegistries() {
	inputMu.Lock()
	inputRegistry = make(map[string]InputConstructor)
	inputMu.Unlock()

	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}
