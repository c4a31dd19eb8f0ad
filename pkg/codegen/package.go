package codegen

import (
	"fmt"

	"github.com/ritzau/modpack/pkg/emit"
	"github.com/ritzau/modpack/pkg/pack"
)

// Package builds funcs for target and renders the resulting module hierarchy
// as an embeddable C fragment.
func (r *Registry) Package(funcs []LoweredFunc, target string, cfg BuildConfig, opts emit.Options) (string, error) {
	m, err := r.Build(funcs, target, cfg)
	if err != nil {
		return "", err
	}
	blob, err := pack.PackImports(m)
	if err != nil {
		return "", fmt.Errorf("packing %s module: %w", m.TypeKey(), err)
	}
	return emit.EmitC(blob, opts), nil
}
