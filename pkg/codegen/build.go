package codegen

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ritzau/modpack/pkg/logging"
	"github.com/ritzau/modpack/pkg/module"
)

// ErrTargetNotEnabled is returned when no backend is registered for a target
var ErrTargetNotEnabled = errors.New("target is not enabled")

// LoweredFunc is a function ready for code generation
type LoweredFunc interface {
	Name() string
}

// Backend turns lowered functions into a compiled module for one target family
type Backend interface {
	Name() string
	Build(funcs []LoweredFunc, target Target) (module.Module, error)
}

// AssertStripper removes runtime assertions from a function.
// It reports whether anything was removed.
type AssertStripper interface {
	StripAsserts(fn LoweredFunc) (LoweredFunc, bool)
}

// BuildConfig carries the per-build switches that affect dispatch
type BuildConfig struct {
	DisableAssert bool
	Stripper      AssertStripper
}

// Registry maps backend names to backends. It is fixed at construction.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds a registry from a closed set of backends
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		name := b.Name()
		if _, dup := r.backends[name]; dup {
			return nil, fmt.Errorf("backend %q registered twice", name)
		}
		r.backends[name] = b
	}
	return r, nil
}

// Lookup returns the backend registered under name
func (r *Registry) Lookup(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build dispatches funcs to the backend named by target's first word.
//
// With cfg.DisableAssert set, every function is passed through cfg.Stripper;
// the stripped set is used only when at least one function changed.
func (r *Registry) Build(funcs []LoweredFunc, target string, cfg BuildConfig) (module.Module, error) {
	t := ParseTarget(target)

	b, ok := r.Lookup(t.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotEnabled, target)
	}

	input := funcs
	if cfg.DisableAssert {
		if cfg.Stripper == nil {
			return nil, errors.New("assertion stripping requested without a stripper")
		}
		stripped := make([]LoweredFunc, len(funcs))
		changed := 0
		for i, fn := range funcs {
			out, ok := cfg.Stripper.StripAsserts(fn)
			if ok {
				changed++
			}
			stripped[i] = out
		}
		if changed > 0 {
			input = stripped
		}
		logging.Debug("stripped assertions", "target", t.Name, "funcs", len(funcs), "changed", changed)
	}

	m, err := b.Build(input, t)
	if err != nil {
		return nil, fmt.Errorf("building for %s: %w", target, err)
	}
	return m, nil
}
