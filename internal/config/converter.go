package config

import (
	"fmt"
	"time"

	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/pkg/survey"
)

// ConvertToPipeline converts parsed configuration data to a Pipeline.
// The data should have been validated against the schema first.
//
// Expected structure:
//
//	{
//	  "schemaVersion": "1.0.0",
//	  "survey": {
//	    "name": "...",
//	    "version": "...",
//	    "input": {...},
//	    "filters": [...],
//	    "output": {...},
//	    "errorHandling": {...}
//	  }
//	}
func ConvertToPipeline(data map[string]interface{}) (*survey.Pipeline, error) {
	if data == nil {
		return nil, fmt.Errorf("configuration data is nil")
	}

	surveyData, ok := data["survey"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'survey' section")
	}

	pipeline := &survey.Pipeline{CreatedAt: time.Now()}

	if pipeline.Name, ok = surveyData["name"].(string); !ok {
		return nil, fmt.Errorf("missing required field 'survey.name'")
	}
	pipeline.ID = pipeline.Name
	if pipeline.Version, ok = surveyData["version"].(string); !ok {
		return nil, fmt.Errorf("missing required field 'survey.version'")
	}
	if description, okDesc := surveyData["description"].(string); okDesc {
		pipeline.Description = description
	}
	if id, okID := surveyData["id"].(string); okID && id != "" {
		pipeline.ID = id
	}

	inputData, ok := surveyData["input"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'survey.input' section")
	}
	inputConfig, err := convertModuleConfig(inputData)
	if err != nil {
		return nil, fmt.Errorf("invalid input config: %w", err)
	}
	pipeline.Input = inputConfig

	if filtersData, okFilters := surveyData["filters"].([]interface{}); okFilters {
		for i, filterData := range filtersData {
			filterMap, isMap := filterData.(map[string]interface{})
			if !isMap {
				return nil, fmt.Errorf("invalid filter at index %d", i)
			}
			filterConfig, convertErr := convertModuleConfig(filterMap)
			if convertErr != nil {
				return nil, fmt.Errorf("invalid filter at index %d: %w", i, convertErr)
			}
			pipeline.Filters = append(pipeline.Filters, *filterConfig)
		}
	}

	outputData, ok := surveyData["output"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'survey.output' section")
	}
	outputConfig, err := convertModuleConfig(outputData)
	if err != nil {
		return nil, fmt.Errorf("invalid output config: %w", err)
	}
	pipeline.Output = outputConfig

	if eh, okEH := surveyData["errorHandling"].(map[string]interface{}); okEH {
		pipeline.ErrorHandling = convertErrorHandling(eh)
	}

	return pipeline, nil
}

// convertModuleConfig splits a module block into its type and the
// remaining keys, which become the module config.
func convertModuleConfig(data map[string]interface{}) (*survey.ModuleConfig, error) {
	moduleType, ok := data["type"].(string)
	if !ok || moduleType == "" {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	moduleConfig := &survey.ModuleConfig{
		Type:   moduleType,
		Config: make(map[string]interface{}, len(data)-1),
	}
	for key, value := range data {
		if key != "type" {
			moduleConfig.Config[key] = value
		}
	}
	return moduleConfig, nil
}

// convertErrorHandling reads the errorHandling block. JSON numbers decode as
// float64 and YAML integers as int; both are accepted.
func convertErrorHandling(data map[string]interface{}) *survey.ErrorHandling {
	errorHandling := &survey.ErrorHandling{
		RetryCount: errhandling.DefaultMaxAttempts,
		RetryDelay: errhandling.DefaultDelayMs,
		OnError:    string(errhandling.OnErrorStop),
	}
	if v, ok := intValue(data["retryCount"]); ok {
		errorHandling.RetryCount = v
	}
	if v, ok := intValue(data["retryDelay"]); ok {
		errorHandling.RetryDelay = v
	}
	if onError, ok := data["onError"].(string); ok {
		errorHandling.OnError = onError
	}
	return errorHandling
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
