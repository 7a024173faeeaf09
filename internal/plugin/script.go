package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/internal/pathutil"
	"github.com/surveysim/runtime/pkg/detection"
)

// MaxScriptLength is the maximum accepted script size in bytes (100KB).
const MaxScriptLength = 100 * 1024

var (
	// ErrScriptEmpty is returned when the script is empty or whitespace-only.
	ErrScriptEmpty = errors.New("script cannot be empty")
	// ErrScriptTooLong is returned when the script exceeds MaxScriptLength.
	ErrScriptTooLong = errors.New("script exceeds maximum length")
	// ErrMissingFunction is returned when the script does not define the entry function.
	ErrMissingFunction = errors.New("entry function not found in script")
	// ErrNotNumeric is returned when the entry function does not return a finite number.
	ErrNotNumeric = errors.New("script did not return a finite number")
)

// ScriptConfig selects an inline script or a script file. Exactly one must be set.
type ScriptConfig struct {
	Script     string `json:"script,omitempty"`
	ScriptFile string `json:"scriptFile,omitempty"`
}

// ParseScriptConfig reads "script" / "scriptFile" from a raw module config.
func ParseScriptConfig(cfg map[string]interface{}) (ScriptConfig, error) {
	var sc ScriptConfig
	script, hasScript := cfg["script"].(string)
	file, hasFile := cfg["scriptFile"].(string)

	switch {
	case hasScript && hasFile:
		return sc, errors.New("cannot specify both 'script' and 'scriptFile' - use only one")
	case hasScript:
		sc.Script = script
	case hasFile:
		sc.ScriptFile = file
	case cfg["script"] != nil:
		return sc, errors.New("field 'script' must be a string")
	case cfg["scriptFile"] != nil:
		return sc, errors.New("field 'scriptFile' must be a string")
	default:
		return sc, errors.New("either 'script' or 'scriptFile' is required for script models")
	}
	return sc, nil
}

// Source returns the script text, reading ScriptFile when Script is empty.
func (c ScriptConfig) Source() (string, error) {
	if c.Script != "" && c.ScriptFile != "" {
		return "", errors.New("cannot specify both 'script' and 'scriptFile' - use only one")
	}
	src := c.Script
	if c.ScriptFile != "" {
		content, err := pathutil.ReadFileLimited(c.ScriptFile, MaxScriptLength)
		if err != nil {
			if errors.Is(err, pathutil.ErrFileTooLarge) {
				return "", fmt.Errorf("%w: %v", ErrScriptTooLong, err)
			}
			return "", err
		}
		src = string(content)
	}
	if strings.TrimSpace(src) == "" {
		return "", ErrScriptEmpty
	}
	if len(src) > MaxScriptLength {
		return "", fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrScriptTooLong, len(src), MaxScriptLength)
	}
	return src, nil
}

// Script is a compiled JavaScript function mapping one detection row to a
// magnitude change. A goja runtime is not goroutine-safe, so calls are
// serialized per Script.
type Script struct {
	entry string
	mu    sync.Mutex
	vm    *goja.Runtime
	fn    goja.Callable
}

// CompileScript runs source in a fresh runtime and resolves the function
// named entry (e.g. "lightcurve").
func CompileScript(source, entry string) (*Script, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrScriptEmpty
	}
	if len(source) > MaxScriptLength {
		return nil, ErrScriptTooLong
	}

	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("script compilation failed: %w", err)
	}

	val := vm.Get(entry)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFunction, entry)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a function", ErrMissingFunction, entry)
	}

	logger.Debug("script model compiled",
		slog.String("entry", entry),
		slog.Int("script_length", len(source)),
	)
	return &Script{entry: entry, vm: vm, fn: fn}, nil
}

// Call invokes the entry function with rec and returns its numeric result.
// Cancelling ctx interrupts a running script.
func (s *Script) Call(ctx context.Context, rec detection.Record) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	row := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		row[k] = v
	}

	res, err := s.fn(goja.Undefined(), s.vm.ToValue(row))
	close(done)
	<-watcher
	s.vm.ClearInterrupt()
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return 0, fmt.Errorf("%s interrupted: %w", s.entry, ctx.Err())
		}
		return 0, fmt.Errorf("%s failed: %w", s.entry, err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return 0, fmt.Errorf("%s: %w", s.entry, ErrNotNumeric)
	}
	f, ok := detection.ToFloat(res.Export())
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s returned %v: %w", s.entry, res.Export(), ErrNotNumeric)
	}
	return f, nil
}

// StringList converts a decoded config value ([]string or []interface{} of
// strings) to []string. Other values yield nil.
func StringList(v interface{}) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
