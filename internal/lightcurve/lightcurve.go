// Package lightcurve provides brightness-variation models that compute a
// per-detection magnitude change from an object's rotational state.
package lightcurve

import (
	"context"
	"fmt"
	"math"

	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/pkg/detection"
)

// Built-in model names.
const (
	ModelIdentity   = "identity"
	ModelSinusoidal = "sinusoidal"
	ModelScript     = "script"
)

// Sinusoidal model parameter columns.
const (
	ColAmplitude = "LCA"
	ColPeriod    = "Period"
	ColTime0     = "Time0"
)

// ScriptEntry is the JavaScript function a script model must define.
const ScriptEntry = "lightcurve"

// Model computes the magnitude change of one detection.
type Model interface {
	Name() string
	// RequiredColumns lists the columns Compute reads.
	RequiredColumns() []string
	Compute(ctx context.Context, rec detection.Record) (float64, error)
}

// Constructor builds a model from its module configuration.
type Constructor func(cfg map[string]interface{}) (Model, error)

// Registry holds the lightcurve model constructors.
var Registry = plugin.NewRegistry[Constructor]("lightcurve")

func init() {
	registerBuiltins()
}

func registerBuiltins() {
	for name, ctor := range map[string]Constructor{
		ModelIdentity:   func(map[string]interface{}) (Model, error) { return Identity{}, nil },
		ModelSinusoidal: func(map[string]interface{}) (Model, error) { return Sinusoidal{}, nil },
		ModelScript:     newScriptModel,
	} {
		_ = Registry.Register(name, ctor)
	}
}

// ResetForTests restores the registry to the built-in models.
func ResetForTests() {
	Registry.Reset()
	registerBuiltins()
}

// New builds the named model. Unknown names are logged by the registry.
func New(name string, cfg map[string]interface{}) (Model, error) {
	ctor, err := Registry.Get(name)
	if err != nil {
		return nil, err
	}
	return ctor(cfg)
}

// Identity leaves brightness unchanged.
type Identity struct{}

// Name implements Model.
func (Identity) Name() string { return ModelIdentity }

// RequiredColumns implements Model.
func (Identity) RequiredColumns() []string { return nil }

// Compute implements Model.
func (Identity) Compute(context.Context, detection.Record) (float64, error) { return 0, nil }

// Sinusoidal is LCA * sin(2π (fieldMJD_TAI - Time0) / Period).
type Sinusoidal struct{}

// Name implements Model.
func (Sinusoidal) Name() string { return ModelSinusoidal }

// RequiredColumns implements Model.
func (Sinusoidal) RequiredColumns() []string {
	return []string{ColAmplitude, ColPeriod, ColTime0, detection.ColFieldMJD}
}

// Compute implements Model.
func (Sinusoidal) Compute(_ context.Context, rec detection.Record) (float64, error) {
	var v [4]float64
	for i, col := range []string{ColAmplitude, ColPeriod, ColTime0, detection.ColFieldMJD} {
		f, ok := rec.Float(col)
		if !ok {
			return 0, fmt.Errorf("sinusoidal lightcurve: column %q is not numeric", col)
		}
		v[i] = f
	}
	amp, period, t0, mjd := v[0], v[1], v[2], v[3]
	if period == 0 {
		return 0, fmt.Errorf("sinusoidal lightcurve: %s is zero", ColPeriod)
	}
	return amp * math.Sin(2*math.Pi*(mjd-t0)/period), nil
}

type scriptModel struct {
	script   *plugin.Script
	required []string
}

func newScriptModel(cfg map[string]interface{}) (Model, error) {
	sc, err := plugin.ParseScriptConfig(cfg)
	if err != nil {
		return nil, err
	}
	src, err := sc.Source()
	if err != nil {
		return nil, err
	}
	s, err := plugin.CompileScript(src, ScriptEntry)
	if err != nil {
		return nil, err
	}
	return &scriptModel{script: s, required: plugin.StringList(cfg["requiredColumns"])}, nil
}

func (m *scriptModel) Name() string { return ModelScript }

func (m *scriptModel) RequiredColumns() []string { return m.required }

func (m *scriptModel) Compute(ctx context.Context, rec detection.Record) (float64, error) {
	return m.script.Call(ctx, rec)
}
