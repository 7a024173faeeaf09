// Package plugin provides named model registries for brightness models.
//
// Lightcurve and activity models are looked up by the name given in a pipeline
// configuration. Registration conflicts and lookups of unknown names are
// logged at error level before the error is returned, so a misconfigured
// pipeline leaves a trace even when the caller discards the error.
package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/surveysim/runtime/internal/logger"
)

var (
	// ErrNotRegistered is returned when a requested model name has no constructor.
	ErrNotRegistered = errors.New("model is not registered")
	// ErrAlreadyRegistered is returned when Register is called twice for one name.
	ErrAlreadyRegistered = errors.New("model is already registered")
	// ErrEmptyName is returned when registering under an empty name.
	ErrEmptyName = errors.New("model name cannot be empty")
)

// Registry maps model names to constructors of type C.
// The zero value is not usable; use NewRegistry.
type Registry[C any] struct {
	kind  string
	mu    sync.RWMutex
	ctors map[string]C
}

// NewRegistry creates an empty registry. kind names the model family in
// log lines and errors (e.g. "lightcurve").
func NewRegistry[C any](kind string) *Registry[C] {
	return &Registry[C]{kind: kind, ctors: make(map[string]C)}
}

// Kind returns the model family name.
func (r *Registry[C]) Kind() string {
	return r.kind
}

// Register adds a constructor under name. A name may be registered once;
// use Update to replace an existing entry.
func (r *Registry[C]) Register(name string, ctor C) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s: %w", r.kind, ErrEmptyName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		logger.Error("model registration conflict",
			slog.String("model_kind", r.kind),
			slog.String("model", name),
		)
		return fmt.Errorf("%s model %q: %w", r.kind, name, ErrAlreadyRegistered)
	}
	r.ctors[name] = ctor
	return nil
}

// Update registers ctor under name, replacing any existing constructor.
func (r *Registry[C]) Update(name string, ctor C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		logger.Debug("replacing registered model",
			slog.String("model_kind", r.kind),
			slog.String("model", name),
		)
	}
	r.ctors[name] = ctor
}

// Get returns the constructor registered under name.
func (r *Registry[C]) Get(name string) (C, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if ok {
		return ctor, nil
	}

	available := r.Names()
	logger.Error("requested model is not registered",
		slog.String("model_kind", r.kind),
		slog.String("model", name),
		slog.String("available", strings.Join(available, ", ")),
	)
	var zero C
	return zero, fmt.Errorf("%s model %q: %w (available: %s)",
		r.kind, name, ErrNotRegistered, strings.Join(available, ", "))
}

// Has reports whether name is registered.
func (r *Registry[C]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[C]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset removes every registration. Intended for tests.
func (r *Registry[C]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors = make(map[string]C)
}
