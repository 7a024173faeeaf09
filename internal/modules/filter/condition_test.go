// Package filter provides implementations for filter modules.
package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/surveysim/runtime/pkg/detection"
)

func oneRow(rec detection.Record) *detection.Table {
	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	t := detection.NewTable(cols...)
	t.Append(rec)
	return t
}

// TestConditionExpressions tests comparison and logical operators over detection rows
func TestConditionExpressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		record     detection.Record
		wantPass   bool
	}{
		{
			name:       "filter equality - match",
			expression: "optFilter == 'r'",
			record:     detection.Record{"optFilter": "r"},
			wantPass:   true,
		},
		{
			name:       "filter equality - no match",
			expression: "optFilter == 'r'",
			record:     detection.Record{"optFilter": "g"},
			wantPass:   false,
		},
		{
			name:       "numeric less than - pass",
			expression: "observedPSFMag < 22.5",
			record:     detection.Record{"observedPSFMag": 21.0},
			wantPass:   true,
		},
		{
			name:       "numeric less than - fail",
			expression: "observedPSFMag < 22.5",
			record:     detection.Record{"observedPSFMag": 23.0},
			wantPass:   false,
		},
		{
			name:       "and",
			expression: "SNR > 5 && optFilter in ['g', 'r']",
			record:     detection.Record{"SNR": 8.0, "optFilter": "g"},
			wantPass:   true,
		},
		{
			name:       "or",
			expression: "SNR > 100 || observedPSFMag < 20",
			record:     detection.Record{"SNR": 3.0, "observedPSFMag": 19.0},
			wantPass:   true,
		},
		{
			name:       "missing column is nil",
			expression: "AstRARate == nil",
			record:     detection.Record{"SNR": 3.0},
			wantPass:   true,
		},
		{
			name:       "truthy non-boolean result",
			expression: "ObjID",
			record:     detection.Record{"ObjID": "2011 AA"},
			wantPass:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := NewConditionFromConfig(ConditionConfig{Expression: tt.expression})
			if err != nil {
				t.Fatalf("NewConditionFromConfig() error = %v", err)
			}

			result, err := cond.Process(context.Background(), oneRow(tt.record))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			if tt.wantPass && result.Len() == 0 {
				t.Errorf("expected record to pass condition, but it was filtered out")
			}
			if !tt.wantPass && result.Len() > 0 {
				t.Errorf("expected record to be filtered out, but it passed")
			}
		})
	}
}

// TestConditionRouting tests onTrue and onFalse behaviour
func TestConditionRouting(t *testing.T) {
	table := detection.NewTable("observedPSFMag")
	table.Append(detection.Record{"observedPSFMag": 15.0})
	table.Append(detection.Record{"observedPSFMag": 25.0})

	tests := []struct {
		name    string
		onTrue  string
		onFalse string
		want    int
	}{
		{"defaults keep true rows", "", "", 1},
		{"invert", "skip", "continue", 1},
		{"keep all", "continue", "continue", 2},
		{"drop all", "skip", "skip", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := NewConditionFromConfig(ConditionConfig{
				Expression: "observedPSFMag < 20",
				OnTrue:     tt.onTrue,
				OnFalse:    tt.onFalse,
			})
			if err != nil {
				t.Fatalf("NewConditionFromConfig() error = %v", err)
			}
			out, err := cond.Process(context.Background(), table)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if out.Len() != tt.want {
				t.Errorf("got %d rows, want %d", out.Len(), tt.want)
			}
		})
	}
}

// TestConditionOnError tests evaluation failure handling
func TestConditionOnError(t *testing.T) {
	table := detection.NewTable("SNR")
	table.Append(detection.Record{"SNR": 10.0})
	table.Append(detection.Record{"SNR": "n/a"})

	fail, _ := NewConditionFromConfig(ConditionConfig{Expression: "SNR * 2 > 5"})
	_, err := fail.Process(context.Background(), table)
	var condErr *ConditionError
	if !errors.As(err, &condErr) {
		t.Fatalf("expected ConditionError, got %v", err)
	}
	if condErr.Code != ErrCodeEvaluationFailed || condErr.RecordIndex != 1 {
		t.Errorf("unexpected error details: %+v", condErr)
	}

	for _, mode := range []string{OnErrorSkip, OnErrorLog} {
		cond, _ := NewConditionFromConfig(ConditionConfig{Expression: "SNR * 2 > 5", OnError: mode})
		out, err := cond.Process(context.Background(), table)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", mode, err)
		}
		if out.Len() != 1 {
			t.Errorf("%s: expected 1 row, got %d", mode, out.Len())
		}
	}
}

// TestConditionConfigErrors tests constructor validation
func TestConditionConfigErrors(t *testing.T) {
	if _, err := NewConditionFromConfig(ConditionConfig{Expression: "  "}); !errors.Is(err, ErrEmptyExpression) {
		t.Errorf("expected ErrEmptyExpression, got %v", err)
	}
	if _, err := NewConditionFromConfig(ConditionConfig{Expression: "SNR >"}); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression, got %v", err)
	}
	if _, err := NewConditionFromConfig(ConditionConfig{Expression: "true", OnTrue: "route"}); err == nil {
		t.Error("expected error for invalid onTrue")
	}
	cond, err := NewConditionFromConfig(ConditionConfig{Expression: "true", OnError: "explode"})
	if err != nil || cond.onError != OnErrorFail {
		t.Errorf("invalid onError should default to fail, got %v / %v", cond, err)
	}
}

func TestParseConditionConfig(t *testing.T) {
	c, err := ParseConditionConfig(map[string]interface{}{"expression": "SNR > 5", "onError": "skip"})
	if err != nil {
		t.Fatalf("ParseConditionConfig failed: %v", err)
	}
	if c.OnTrue != OnConditionContinue || c.OnFalse != OnConditionSkip || c.OnError != OnErrorSkip {
		t.Errorf("unexpected config: %+v", c)
	}
	if _, err := ParseConditionConfig(map[string]interface{}{"expression": 5}); err == nil {
		t.Error("expected error for non-string expression")
	}
}
