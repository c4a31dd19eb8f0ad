package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/modpack/pkg/module"
)

// ErrInvalid is returned for manifests that do not describe a module tree
var ErrInvalid = errors.New("invalid manifest")

// Spec describes one module in a manifest
type Spec struct {
	Type    string `koanf:"type"`    // Module type key (e.g., "llvm", "cuda")
	Payload string `koanf:"payload"` // File holding the serialized module, relative to the manifest
	Data    string `koanf:"data"`    // Inline payload text, alternative to Payload
	Imports []Spec `koanf:"imports"`
}

// Result is a loaded manifest
type Result struct {
	Root  *module.Blob
	Files []string // Manifest and payload files that were read, absolute paths
}

// Load reads a TOML manifest and the payload files it references.
// Shape limits are not checked here; packing reports them.
func Load(path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(abs), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	if !k.Exists("module") {
		return nil, fmt.Errorf("%w: %s has no [module] table", ErrInvalid, path)
	}

	var spec Spec
	if err := k.Unmarshal("module", &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest %s: %w", path, err)
	}

	res := &Result{Files: []string{abs}}
	root, err := res.build(filepath.Dir(abs), spec, "module")
	if err != nil {
		return nil, err
	}
	res.Root = root
	return res, nil
}

func (res *Result) build(dir string, spec Spec, where string) (*module.Blob, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("%w: %s: missing type", ErrInvalid, where)
	}
	if spec.Payload != "" && spec.Data != "" {
		return nil, fmt.Errorf("%w: %s: payload and data are mutually exclusive", ErrInvalid, where)
	}

	var payload []byte
	switch {
	case spec.Payload != "":
		p := spec.Payload
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: reading payload: %w", where, err)
		}
		payload = b
		res.Files = append(res.Files, p)
	case spec.Data != "":
		payload = []byte(spec.Data)
	}

	m := module.NewBlob(spec.Type, payload)
	for i, child := range spec.Imports {
		c, err := res.build(dir, child, fmt.Sprintf("%s.imports[%d]", where, i))
		if err != nil {
			return nil, err
		}
		m.Import(c)
	}
	return m, nil
}
