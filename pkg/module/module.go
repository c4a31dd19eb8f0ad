package module

import (
	"fmt"
	"io"
	"strings"

	"github.com/ritzau/modpack/pkg/stream"
)

// Module is a compiled unit that can be packaged into a blob.
// Implementations are owned by the caller; packaging only reads them.
type Module interface {
	// TypeKey identifies the packaging kind (e.g., "llvm", "cuda", "graph").
	TypeKey() string

	// Imports returns the modules this module depends on, in import order.
	Imports() []Module

	// SaveToBinary writes the module's own state to w.
	SaveToBinary(w io.Writer) error
}

// Kind classifies a module for packaging purposes
type Kind string

const (
	KindCollector Kind = "collector" // Natively linked code, aggregated at link time
	KindData      Kind = "data"      // Payload carried verbatim inside the blob
)

// Collector type keys. Modules of these kinds are linked into the host
// library and never serialized into the blob themselves.
const (
	TypeKeyLLVM = "llvm" // Native dynamically linked code
	TypeKeyC    = "c"    // Generated C code
)

// IsCollector reports whether typeKey names a collector-kind module
func IsCollector(typeKey string) bool {
	switch typeKey {
	case TypeKeyLLVM, TypeKeyC:
		return true
	default:
		return false
	}
}

// KindOf returns the packaging kind of m
func KindOf(m Module) Kind {
	if IsCollector(m.TypeKey()) {
		return KindCollector
	}
	return KindData
}

// Blob is an in-memory module with an opaque payload.
// It is what the manifest loader produces and what the blob decoder returns.
type Blob struct {
	Key     string
	Payload []byte
	Deps    []Module
}

// NewBlob creates a blob module
func NewBlob(typeKey string, payload []byte, imports ...Module) *Blob {
	return &Blob{Key: typeKey, Payload: payload, Deps: imports}
}

func (b *Blob) TypeKey() string {
	return b.Key
}

func (b *Blob) Imports() []Module {
	return b.Deps
}

// Import appends a child module
func (b *Blob) Import(m Module) {
	b.Deps = append(b.Deps, m)
}

// SaveToBinary writes the payload as a length-prefixed byte string so a
// decoder can skip over it without knowing the module type.
func (b *Blob) SaveToBinary(w io.Writer) error {
	return stream.NewWriter(w).WriteBytes(b.Payload)
}

// LoadBlob reads a payload written by Blob.SaveToBinary
func LoadBlob(r io.Reader, typeKey string) (Module, error) {
	payload, err := stream.NewReader(r).ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("reading %s payload: %w", typeKey, err)
	}
	return NewBlob(typeKey, payload), nil
}

// Describe renders a short one-line summary of m for logs and reports
func Describe(m Module) string {
	var sb strings.Builder
	sb.WriteString(m.TypeKey())
	sb.WriteString(" (")
	sb.WriteString(string(KindOf(m)))
	if b, ok := m.(*Blob); ok {
		fmt.Fprintf(&sb, ", %d bytes", len(b.Payload))
	}
	sb.WriteString(")")
	return sb.String()
}
