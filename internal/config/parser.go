package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/surveysim/runtime/internal/pathutil"
)

// MaxConfigSize bounds the size of a configuration file.
const MaxConfigSize = 1 << 20

// ParseConfig parses and validates a configuration file. The format is
// taken from the extension (.json, .yaml, .yml) or sniffed from the content.
func ParseConfig(path string) *Result {
	result := &Result{FilePath: path}

	content, err := pathutil.ReadFileLimited(path, MaxConfigSize)
	if err != nil {
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Path:    path,
			Message: fmt.Sprintf("failed to read file: %v", err),
			Type:    ErrorTypeIO,
		})
		return result
	}

	r := ParseConfigString(string(content), DetectFormat(path))
	r.FilePath = path
	for i := range r.ParseErrors {
		if r.ParseErrors[i].Path == "" {
			r.ParseErrors[i].Path = path
		}
	}
	return r
}

// ParseConfigString parses and validates configuration content. If format
// is empty it is detected from the content.
func ParseConfigString(content string, format string) *Result {
	result := &Result{Format: format}

	if format == "" {
		switch {
		case IsJSON(content):
			format = FormatJSON
		case IsYAML(content):
			format = FormatYAML
		default:
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Message: "unable to detect configuration format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
	}

	var parsed *ParseResult
	switch format {
	case FormatJSON:
		parsed = ParseJSONString(content)
	case FormatYAML:
		parsed = ParseYAMLString(content)
	default:
		result.ParseErrors = append(result.ParseErrors, ParseError{
			Message: fmt.Sprintf("unsupported format: %s", format),
			Type:    ErrorTypeFormat,
		})
		return result
	}

	result.Data = parsed.Data
	result.ParseErrors = parsed.Errors
	result.Format = parsed.Format
	if !parsed.IsValid() {
		return result
	}

	result.ValidationErrors = ValidateConfig(parsed.Data).Errors
	return result
}

// DetectFormat returns the format implied by the file extension, or "".
func DetectFormat(path string) string {
	switch {
	case pathutil.HasExtension(path, ".json"):
		return FormatJSON
	case pathutil.HasExtension(path, ".yaml", ".yml"):
		return FormatYAML
	default:
		return ""
	}
}

// IsJSON reports whether content looks like a JSON document.
func IsJSON(content string) bool {
	content = strings.TrimSpace(content)
	return strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[")
}

// IsYAML reports whether content decodes as a non-empty YAML document.
// JSON is also YAML, so this returns true for JSON content too.
func IsYAML(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	var data interface{}
	return yaml.Unmarshal([]byte(content), &data) == nil && data != nil
}

// ParseJSONString decodes a JSON configuration object.
func ParseJSONString(content string) *ParseResult {
	result := &ParseResult{Format: FormatJSON}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected JSON object",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, jsonParseError(err, content))
		return result
	}
	return toMapping(result, data, "JSON object")
}

// ParseYAMLString decodes a YAML configuration mapping.
func ParseYAMLString(content string) *ParseResult {
	result := &ParseResult{Format: FormatYAML}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Message: "empty content: expected YAML document",
			Type:    ErrorTypeSyntax,
		})
		return result
	}

	var data interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		result.Errors = append(result.Errors, yamlParseError(err))
		return result
	}
	return toMapping(result, data, "YAML mapping")
}

// toMapping stores data as the result's top-level mapping. A null document
// parses without error and is rejected later by validation.
func toMapping(result *ParseResult, data interface{}, want string) *ParseResult {
	if data == nil {
		return result
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		result.Errors = append(result.Errors, ParseError{
			Message: fmt.Sprintf("invalid configuration: expected %s, got %T", want, data),
			Type:    ErrorTypeFormat,
		})
		return result
	}
	result.Data = m
	return result
}

func jsonParseError(err error, content string) ParseError {
	parseErr := ParseError{Message: err.Error(), Type: ErrorTypeSyntax}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		parseErr.Offset = syntaxErr.Offset
		parseErr.Line, parseErr.Column = offsetToLineColumn(content, syntaxErr.Offset)
		parseErr.Message = fmt.Sprintf("JSON syntax error: %s", syntaxErr.Error())
	}
	return parseErr
}

// offsetToLineColumn converts a byte offset to 1-based line and column.
func offsetToLineColumn(content string, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

func yamlParseError(err error) ParseError {
	parseErr := ParseError{Message: err.Error(), Type: ErrorTypeSyntax}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		parseErr.Message = "YAML type error: " + strings.Join(typeErr.Errors, "; ")
	}
	// yaml.v3 reports "yaml: line N: ..."
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		parseErr.Line = line
	}
	return parseErr
}
