package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/modpack/pkg/graph"
	"github.com/ritzau/modpack/pkg/module"
	"github.com/ritzau/modpack/pkg/pack"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// PrintPackReport prints the import tree of a packed hierarchy and where the
// blob went
func PrintPackReport(w io.Writer, tree *graph.ImportTree, root module.Module, blobLen int, dest string) {
	bold.Fprintln(w, "Module Blob")
	bold.Fprintln(w, "===========")

	if tree.Legacy() {
		fmt.Fprintf(w, "Layout: %s (root %s is collector kind)\n", yellow.Sprint("legacy flat"), root.TypeKey())
		fmt.Fprintf(w, "Root: %s\n", module.Describe(root))
		for i, m := range root.Imports() {
			fmt.Fprintf(w, "  [%d] %s\n", i, module.Describe(m))
		}
	} else {
		fmt.Fprintf(w, "Layout: %s, %d vertices\n", green.Sprint("tree"), tree.NumVertices())
		fmt.Fprintf(w, "Order: %s\n", formatOrder(tree.CanonicalOrder()))
		printNode(w, tree.Vertex(tree.Root()), "", "", map[int64]bool{})
	}

	fmt.Fprintln(w)
	green.Fprintf(w, "Packed %d bytes", blobLen)
	if dest != "" {
		fmt.Fprintf(w, " -> %s", dest)
	}
	fmt.Fprintln(w)
}

func printNode(w io.Writer, n *graph.Node, prefix, childPrefix string, seen map[int64]bool) {
	fmt.Fprint(w, prefix)
	cyan.Fprintf(w, "[%d] ", n.ID())

	if n.Kind() == graph.KindCollector {
		keys := make([]string, 0, len(n.Collected()))
		for _, m := range n.Collected() {
			keys = append(keys, m.TypeKey())
		}
		label := "host library"
		if len(keys) > 0 {
			label += ": " + strings.Join(keys, ", ")
		}
		yellow.Fprint(w, label)
		if seen[n.ID()] {
			fmt.Fprintln(w, " (linked)")
			return
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, module.Describe(n.Module()))
	}
	seen[n.ID()] = true

	children := n.Children()
	for i, c := range children {
		branch, next := "├─ ", "│  "
		if i == len(children)-1 {
			branch, next = "└─ ", "   "
		}
		printNode(w, c, childPrefix+branch, childPrefix+next, seen)
	}
}

// PrintBlobReport prints a decoded blob
func PrintBlobReport(w io.Writer, source string, u *pack.Unpacked, blobLen int) {
	bold.Fprintf(w, "Blob: %s (%d bytes)\n", source, blobLen)

	if u.Legacy {
		fmt.Fprintf(w, "Layout: %s, %d imports\n", yellow.Sprint("legacy flat"), len(u.Records))
	} else {
		fmt.Fprintf(w, "Layout: %s, %d vertices\n", green.Sprint("tree"), u.NumVertices)
		fmt.Fprintf(w, "Order: %s\n", formatOrder(u.Order))
	}

	for _, rec := range u.Records {
		cyan.Fprintf(w, "  [%d] ", rec.Vertex)
		fmt.Fprintln(w, module.Describe(rec.Module))
	}
}

func formatOrder(order []int64) string {
	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
