// Package pack serializes a module hierarchy into a single binary blob.
//
// Tree layout:
//
//	uint64        vertex count (> 0)
//	[]uint64      canonical BFS order, count-prefixed
//	records       for each non-collector vertex in canonical order:
//	              type key (length-prefixed string), module payload
//
// Legacy flat layout, used when the root is itself collector kind:
//
//	uint64        0
//	uint64        number of direct imports
//	records       each direct import in order: type key, module payload
package pack

import (
	"bytes"
	"fmt"

	"github.com/ritzau/modpack/pkg/graph"
	"github.com/ritzau/modpack/pkg/logging"
	"github.com/ritzau/modpack/pkg/module"
	"github.com/ritzau/modpack/pkg/stream"
)

// PackImports builds the import tree of root and packs it in canonical order
func PackImports(root module.Module) ([]byte, error) {
	tree, err := graph.BuildImportTree(root)
	if err != nil {
		return nil, err
	}
	return Pack(root, tree, tree.CanonicalOrder())
}

// Pack writes root's hierarchy using tree and its canonical order.
// On error no bytes are returned.
func Pack(root module.Module, tree *graph.ImportTree, order []int64) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)

	var err error
	if tree.Legacy() {
		err = packFlat(w, root)
	} else {
		err = packTree(w, tree, order)
	}
	if err != nil {
		return nil, err
	}

	logging.Debug("packed module blob", "root", root.TypeKey(), "legacy", tree.Legacy(), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func packTree(w *stream.Writer, tree *graph.ImportTree, order []int64) error {
	if int64(len(order)) != tree.NumVertices() {
		return fmt.Errorf("canonical order has %d entries for %d vertices", len(order), tree.NumVertices())
	}
	if order[0] != tree.Root() {
		return fmt.Errorf("canonical order starts at %d, not the root %d", order[0], tree.Root())
	}

	ids := make([]uint64, len(order))
	for i, id := range order {
		ids[i] = uint64(id)
	}
	if err := w.WriteUint64(uint64(tree.NumVertices())); err != nil {
		return err
	}
	if err := w.WriteUint64s(ids); err != nil {
		return err
	}

	for _, id := range order {
		n := tree.Vertex(id)
		if n == nil {
			return fmt.Errorf("canonical order references unknown vertex %d", id)
		}
		if n.Kind() == graph.KindCollector {
			continue
		}

		typeKey := n.Module().TypeKey()
		if n.Kind() == graph.KindRoot {
			typeKey = tree.RootTypeKey()
		}
		if err := writeRecord(w, typeKey, n.Module()); err != nil {
			return fmt.Errorf("vertex %d: %w", id, err)
		}
	}
	return nil
}

func packFlat(w *stream.Writer, root module.Module) error {
	imports := root.Imports()
	for i, m := range imports {
		if n := len(m.Imports()); n != 0 {
			return fmt.Errorf("%w: import %d (%s) has %d imports", graph.ErrHierarchyDepth, i, m.TypeKey(), n)
		}
	}

	if err := w.WriteUint64(0); err != nil {
		return err
	}
	if err := w.WriteUint64(uint64(len(imports))); err != nil {
		return err
	}
	for i, m := range imports {
		if err := writeRecord(w, m.TypeKey(), m); err != nil {
			return fmt.Errorf("import %d: %w", i, err)
		}
	}
	return nil
}

func writeRecord(w *stream.Writer, typeKey string, m module.Module) error {
	if err := w.WriteString(typeKey); err != nil {
		return err
	}
	start := w.Len()
	if err := m.SaveToBinary(w); err != nil {
		return fmt.Errorf("saving %s module: %w", typeKey, err)
	}
	logging.Trace("wrote module record", "type", typeKey, "payload", w.Len()-start)
	return nil
}
