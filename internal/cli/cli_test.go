package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/surveysim/runtime/internal/config"
	"github.com/surveysim/runtime/pkg/survey"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() { Stdout, Stderr = oldOut, oldErr })
	return &out, &errOut
}

func TestFormatErrorLocation(t *testing.T) {
	tests := []struct {
		path         string
		line, column int
		want         string
	}{
		{"", 3, 4, ""},
		{"a.yaml", 0, 0, "a.yaml"},
		{"a.yaml", 3, 0, "a.yaml:3"},
		{"a.yaml", 3, 7, "a.yaml:3:7"},
	}
	for _, tt := range tests {
		if got := formatErrorLocation(tt.path, tt.line, tt.column); got != tt.want {
			t.Errorf("formatErrorLocation(%q, %d, %d) = %q, want %q", tt.path, tt.line, tt.column, got, tt.want)
		}
	}
}

func TestPrintLoadErrors_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		result *config.Result
		err    error
		want   int
		stderr string
	}{
		{"ok", &config.Result{}, nil, ExitSuccess, ""},
		{
			"parse",
			&config.Result{ParseErrors: []config.ParseError{{Path: "s.json", Line: 5, Column: 2, Message: "bad"}}},
			errors.New("parse"),
			ExitParseError,
			"s.json:5:2: bad",
		},
		{
			"validation",
			&config.Result{ValidationErrors: []config.ValidationError{{Path: "/survey/filters/0", Message: "missing property 'limit'"}}},
			errors.New("validation"),
			ExitValidationError,
			"/survey/filters/0: missing property 'limit'",
		},
		{"conversion", &config.Result{}, errors.New("survey.input is required"), ExitValidationError, "Invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut := captureOutput(t)
			if got := PrintLoadErrors(tt.result, tt.err, false, true); got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
			if !strings.Contains(errOut.String(), tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", errOut.String(), tt.stderr)
			}
		})
	}
}

func TestPrintExecutionResult(t *testing.T) {
	now := time.Now()
	result := &survey.ExecutionResult{
		RunID:           "r1",
		Status:          "partial",
		StartedAt:       now,
		CompletedAt:     now.Add(time.Second),
		RecordsRead:     10,
		RecordsRetained: 4,
		RecordsWritten:  4,
		FiltersSkipped:  []int{1, 3},
	}

	out, _ := captureOutput(t)
	PrintExecutionResult(result, nil, OutputOptions{})
	for _, want := range []string{"Skipped filters: 1, 3", "Detections read: 10", "Detections written: 4"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stdout missing %q:\n%s", want, out.String())
		}
	}

	out, _ = captureOutput(t)
	PrintExecutionResult(result, nil, OutputOptions{Verbose: true})
	want := "Read 10 detections, kept 4, wrote 4 in 1.00s (10.0 rows/sec)"
	if !strings.Contains(out.String(), want) {
		t.Errorf("verbose stdout missing %q:\n%s", want, out.String())
	}

	out, _ = captureOutput(t)
	PrintExecutionResult(result, nil, OutputOptions{Quiet: true})
	if out.Len() != 0 {
		t.Errorf("quiet mode printed %q", out.String())
	}
}

func TestPrintExecutionResult_Failure(t *testing.T) {
	_, errOut := captureOutput(t)
	result := &survey.ExecutionResult{
		Status: "error",
		Error:  &survey.ExecutionError{Code: "OUTPUT_FAILED", Module: "output", Message: "disk full", Category: "io"},
	}
	PrintExecutionResult(result, errors.New("disk full"), OutputOptions{Verbose: true})
	for _, want := range []string{"Module: output", "Error: disk full", "Category: io"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("stderr missing %q:\n%s", want, errOut.String())
		}
	}
}

func TestPrintDryRunPreview(t *testing.T) {
	out, _ := captureOutput(t)
	PrintDryRunPreview(&survey.OutputPreview{
		ModuleType:  "sqlite",
		Destination: "out.db:detections",
		RecordCount: 12,
		Columns:     []string{"ObjID", "observedPSFMag"},
	}, false)
	for _, want := range []string{"Destination: out.db:detections", "Detections: 12", "Columns: ObjID, observedPSFMag"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stdout missing %q:\n%s", want, out.String())
		}
	}
}
