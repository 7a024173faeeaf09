package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surveysim/runtime/internal/activity"
	"github.com/surveysim/runtime/internal/errhandling"
	"github.com/surveysim/runtime/internal/lightcurve"
	"github.com/surveysim/runtime/internal/logger"
	"github.com/surveysim/runtime/pkg/detection"
)

// brightnessModel is the shape shared by lightcurve and activity models.
type brightnessModel interface {
	Name() string
	RequiredColumns() []string
	Compute(ctx context.Context, rec detection.Record) (float64, error)
}

// BrightnessConfig configures the lightcurve and activity modules.
type BrightnessConfig struct {
	// Model is the registered model name (required)
	Model string `json:"model"`
	// Target is the magnitude column to adjust, default trailedSourceMag
	Target string `json:"target,omitempty"`
	// Params is the raw module config handed to the model constructor
	Params map[string]interface{} `json:"-"`
}

// ParseBrightnessConfig reads a lightcurve or activity config map.
func ParseBrightnessConfig(cfg map[string]interface{}) (BrightnessConfig, error) {
	var c BrightnessConfig
	var err error
	if c.Model, err = stringParam(cfg, "model", ""); err != nil {
		return c, err
	}
	if c.Model == "" {
		return c, errors.New("'model' is required")
	}
	if c.Target, err = stringParam(cfg, "target", detection.ColTrailedSourceMag); err != nil {
		return c, err
	}
	c.Params = cfg
	return c, nil
}

// BrightnessModule adds a model's magnitude change to a target column.
type BrightnessModule struct {
	kind   string
	target string
	model  brightnessModel
}

// NewLightcurveFromConfig builds a lightcurve module from the model registry.
func NewLightcurveFromConfig(config BrightnessConfig) (*BrightnessModule, error) {
	m, err := lightcurve.New(config.Model, config.Params)
	if err != nil {
		return nil, err
	}
	return newBrightnessModule("lightcurve", config.Target, m), nil
}

// NewActivityFromConfig builds an activity module from the model registry.
func NewActivityFromConfig(config BrightnessConfig) (*BrightnessModule, error) {
	m, err := activity.New(config.Model, config.Params)
	if err != nil {
		return nil, err
	}
	return newBrightnessModule("activity", config.Target, m), nil
}

func newBrightnessModule(kind, target string, m brightnessModel) *BrightnessModule {
	if target == "" {
		target = detection.ColTrailedSourceMag
	}
	logger.Debug("brightness module initialized",
		slog.String("model_kind", kind),
		slog.String("model", m.Name()),
		slog.String("target", target),
	)
	return &BrightnessModule{kind: kind, target: target, model: m}
}

// Process returns a copy of table with target += Δmag on every row.
func (b *BrightnessModule) Process(ctx context.Context, table *detection.Table) (*detection.Table, error) {
	required := append([]string{b.target}, b.model.RequiredColumns()...)
	if err := table.RequireColumns(required...); err != nil {
		return nil, fmt.Errorf("%s model %q: %w", b.kind, b.model.Name(), err)
	}

	out := table.Clone()
	for i, rec := range out.Rows {
		if err := checkCancelled(ctx, i); err != nil {
			return nil, err
		}
		mag, ok := rec.Float(b.target)
		if !ok {
			return nil, errhandling.NewDataError(
				fmt.Sprintf("%s model %q: row %d: %q is not numeric", b.kind, b.model.Name(), i, b.target), nil)
		}
		delta, err := b.model.Compute(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("%s model %q: row %d: %w", b.kind, b.model.Name(), i, err)
		}
		rec[b.target] = mag + delta
	}
	return out, nil
}
