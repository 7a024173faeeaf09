// Package config provides functionality for parsing and validating
// survey pipeline configuration files (JSON/YAML).
package config

import (
	"errors"
	"fmt"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/pkg/survey"
)

var (
	// ErrParse is returned by Load when the file cannot be read or decoded.
	ErrParse = errors.New("configuration parse failed")
	// ErrValidation is returned by Load when the document violates the schema.
	ErrValidation = errors.New("configuration validation failed")
)

// Load parses, validates and converts a configuration file. The returned
// Result carries the individual errors for reporting.
func Load(path string) (*survey.Pipeline, *Result, error) {
	result := ParseConfig(path)
	switch {
	case len(result.ParseErrors) > 0:
		return nil, result, fmt.Errorf("%w: %v", ErrParse, result.ParseErrors[0])
	case len(result.ValidationErrors) > 0:
		return nil, result, fmt.Errorf("%w: %d error(s), first: %v",
			ErrValidation, len(result.ValidationErrors), result.ValidationErrors[0])
	}

	pipeline, err := ConvertToPipeline(result.Data)
	if err != nil {
		return nil, result, errhandling.NewConfigError(err.Error(), fmt.Errorf("%w: %w", ErrValidation, err))
	}
	return pipeline, result, nil
}
