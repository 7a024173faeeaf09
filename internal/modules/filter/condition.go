// Package filter provides implementations for filter modules.
// Condition module cuts detections based on an expression over each row.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/detection"
)

// Error codes for condition module
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
)

var (
	// ErrEmptyExpression is returned when the expression is empty or whitespace-only.
	ErrEmptyExpression = errors.New("expression cannot be empty")
	// ErrInvalidExpression is returned when the expression syntax is invalid
	ErrInvalidExpression = errors.New("invalid expression syntax")
)

// Routing behavior constants
const (
	OnConditionContinue = "continue"
	OnConditionSkip     = "skip"
)

// ConditionConfig represents the configuration for a condition filter module.
type ConditionConfig struct {
	// Expression is evaluated with the row's columns as variables (required)
	Expression string `json:"expression"`
	// OnTrue specifies behavior when condition is true: "continue" (default) or "skip"
	OnTrue string `json:"onTrue,omitempty"`
	// OnFalse specifies behavior when condition is false: "continue" or "skip" (default)
	OnFalse string `json:"onFalse,omitempty"`
	// OnError specifies error handling mode: "fail" (default), "skip", "log"
	OnError string `json:"onError,omitempty"`
}

// ParseConditionConfig reads a condition config map.
func ParseConditionConfig(cfg map[string]interface{}) (ConditionConfig, error) {
	var c ConditionConfig
	var err error
	if c.Expression, err = stringParam(cfg, "expression", ""); err != nil {
		return c, err
	}
	if c.OnTrue, err = stringParam(cfg, "onTrue", OnConditionContinue); err != nil {
		return c, err
	}
	if c.OnFalse, err = stringParam(cfg, "onFalse", OnConditionSkip); err != nil {
		return c, err
	}
	if c.OnError, err = stringParam(cfg, "onError", OnErrorFail); err != nil {
		return c, err
	}
	return c, nil
}

// ConditionModule keeps or drops each detection according to an expression.
type ConditionModule struct {
	expression string
	onTrue     string
	onFalse    string
	onError    string
	program    *vm.Program
}

// ConditionError carries structured context for condition evaluation failures.
type ConditionError struct {
	Code        string
	Message     string
	Expression  string
	RecordIndex int
}

func (e *ConditionError) Error() string {
	return e.Message
}

// NewConditionFromConfig compiles the expression and validates routing options.
func NewConditionFromConfig(config ConditionConfig) (*ConditionModule, error) {
	if strings.TrimSpace(config.Expression) == "" {
		return nil, ErrEmptyExpression
	}

	onTrue := config.OnTrue
	if onTrue == "" {
		onTrue = OnConditionContinue
	}
	onFalse := config.OnFalse
	if onFalse == "" {
		onFalse = OnConditionSkip
	}
	for key, v := range map[string]string{"onTrue": onTrue, "onFalse": onFalse} {
		if v != OnConditionContinue && v != OnConditionSkip {
			return nil, fmt.Errorf("invalid %s value %q: must be %q or %q", key, v, OnConditionContinue, OnConditionSkip)
		}
	}

	onError := config.OnError
	if onError == "" {
		onError = OnErrorFail
	}
	if onError != OnErrorFail && onError != OnErrorSkip && onError != OnErrorLog {
		logger.Warn("invalid onError value for condition module; defaulting to fail",
			slog.String("on_error", onError),
		)
		onError = OnErrorFail
	}

	// AllowUndefinedVariables lets rows without a column evaluate it as nil.
	program, err := expr.Compile(config.Expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	logger.Debug("condition module initialized",
		slog.String("expression", config.Expression),
		slog.String("on_true", onTrue),
		slog.String("on_false", onFalse),
		slog.String("on_error", onError),
	)

	return &ConditionModule{
		expression: config.Expression,
		onTrue:     onTrue,
		onFalse:    onFalse,
		onError:    onError,
		program:    program,
	}, nil
}

// Process evaluates the expression for each row and applies onTrue/onFalse.
// Evaluation errors follow onError: "fail" aborts, "skip" and "log" drop the
// row after logging at warn or error level.
func (c *ConditionModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	out := detection.NewTable(table.Columns...)

	for recordIdx, record := range table.Rows {
		if err := checkCancelled(ctx, recordIdx); err != nil {
			return nil, err
		}

		output, err := expr.Run(c.program, map[string]interface{}(record))
		if err != nil {
			condErr := &ConditionError{
				Code:        ErrCodeEvaluationFailed,
				Message:     fmt.Sprintf("condition evaluation failed at record %d: %v", recordIdx, err),
				Expression:  c.expression,
				RecordIndex: recordIdx,
			}

			switch c.onError {
			case OnErrorSkip:
				logger.Warn("skipping record due to condition evaluation error",
					slog.Int("record_index", recordIdx),
					slog.String("expression", c.expression),
					slog.String("error", err.Error()),
				)
				continue
			case OnErrorLog:
				logger.Error("condition evaluation error (continuing)",
					slog.Int("record_index", recordIdx),
					slog.String("expression", c.expression),
					slog.String("error", err.Error()),
				)
				continue
			default:
				return nil, condErr
			}
		}

		conditionResult, ok := output.(bool)
		if !ok {
			conditionResult = toBool(output)
		}

		action := c.onFalse
		if conditionResult {
			action = c.onTrue
		}
		if action == OnConditionContinue {
			out.Append(record)
		}
	}

	return out, nil
}

// toBool converts a value to boolean.
func toBool(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
