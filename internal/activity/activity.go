// Package activity provides cometary-activity models that brighten a
// detection by the contribution of an object's coma.
package activity

import (
	"context"

	"github.com/surveysim/runtime/internal/plugin"
	"github.com/surveysim/runtime/pkg/detection"
)

// Built-in model names.
const (
	ModelIdentity = "identity"
	ModelScript   = "script"
)

// ScriptEntry is the JavaScript function a script model must define.
const ScriptEntry = "activity"

// Model computes the magnitude change one detection receives from activity.
type Model interface {
	Name() string
	RequiredColumns() []string
	Compute(ctx context.Context, rec detection.Record) (float64, error)
}

// Constructor builds a model from its module configuration.
type Constructor func(cfg map[string]interface{}) (Model, error)

// Registry holds the activity model constructors.
var Registry = plugin.NewRegistry[Constructor]("activity")

func init() {
	registerBuiltins()
}

func registerBuiltins() {
	_ = Registry.Register(ModelIdentity, func(map[string]interface{}) (Model, error) { return Identity{}, nil })
	_ = Registry.Register(ModelScript, newScriptModel)
}

// ResetForTests restores the registry to the built-in models.
func ResetForTests() {
	Registry.Reset()
	registerBuiltins()
}

// New builds the named model.
func New(name string, cfg map[string]interface{}) (Model, error) {
	ctor, err := Registry.Get(name)
	if err != nil {
		return nil, err
	}
	return ctor(cfg)
}

// Identity models an inactive object.
type Identity struct{}

// Name implements Model.
func (Identity) Name() string { return ModelIdentity }

// RequiredColumns implements Model.
func (Identity) RequiredColumns() []string { return nil }

// Compute implements Model.
func (Identity) Compute(context.Context, detection.Record) (float64, error) { return 0, nil }

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
