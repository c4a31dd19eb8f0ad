package graph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/ritzau/modpack/pkg/logging"
	"github.com/ritzau/modpack/pkg/module"
)

var (
	// ErrHierarchyBreadth is returned when a direct import has more than one import
	ErrHierarchyBreadth = errors.New("only one- or two-level hierarchy supported")

	// ErrHierarchyDepth is returned when a module below the first import level has imports
	ErrHierarchyDepth = errors.New("only one-level hierarchy supported beyond this point")
)

// Reserved vertex ids
const (
	CollectorID int64 = 0 // Shared aggregation point for natively linked modules
	RootID      int64 = 1
)

// NodeKind tags a vertex of the import tree
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindCollector
	KindData
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCollector:
		return "collector"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is a vertex of the import tree. It implements gonum's graph.Node.
type Node struct {
	id       int64
	kind     NodeKind
	module   module.Module   // nil for the collector
	modules  []module.Module // collector only: every module linked into it
	children []*Node
}

func (n *Node) ID() int64 {
	return n.id
}

func (n *Node) Kind() NodeKind {
	return n.kind
}

// Module returns the module packaged at this vertex, or nil for the collector
func (n *Node) Module() module.Module {
	return n.module
}

// Collected returns the collector-kind modules aggregated into the collector vertex
func (n *Node) Collected() []module.Module {
	return n.modules
}

// Children returns the child vertices in edge insertion order
func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) hasChild(id int64) bool {
	for _, c := range n.children {
		if c.id == id {
			return true
		}
	}
	return false
}

// ImportTree is the rooted packaging graph of a module hierarchy.
// A tree whose root is 0 is in legacy flat mode and has no vertices.
type ImportTree struct {
	root    int64
	rootKey string
	nodes   []*Node // indexed by vertex id
}

// BuildImportTree inspects root and its (at most two-level) import hierarchy.
//
// Vertex 0 is the collector, vertex 1 the root, and data modules are numbered
// from 2 in import order. All collector-kind modules collapse onto vertex 0.
// When root itself is collector kind no tree is built.
func BuildImportTree(root module.Module) (*ImportTree, error) {
	for i, m := range root.Imports() {
		if n := len(m.Imports()); n > 1 {
			return nil, fmt.Errorf("%w: import %d (%s) has %d imports",
				ErrHierarchyBreadth, i, m.TypeKey(), n)
		}
	}

	t := &ImportTree{rootKey: root.TypeKey()}
	if module.IsCollector(t.rootKey) {
		logging.Debug("root is collector kind, using legacy flat layout",
			"type", t.rootKey, "imports", len(root.Imports()))
		return t, nil
	}

	collector := &Node{id: CollectorID, kind: KindCollector}
	rootNode := &Node{id: RootID, kind: KindRoot, module: root}
	t.nodes = []*Node{collector, rootNode}
	t.root = RootID

	for i, m := range root.Imports() {
		parent := collector
		if module.IsCollector(m.TypeKey()) {
			t.collect(rootNode, m)
		} else {
			parent = t.addData(rootNode, m)
		}

		for _, leaf := range m.Imports() {
			if n := len(leaf.Imports()); n != 0 {
				return nil, fmt.Errorf("%w: %s under import %d (%s) has %d imports",
					ErrHierarchyDepth, leaf.TypeKey(), i, m.TypeKey(), n)
			}
			if module.IsCollector(leaf.TypeKey()) {
				t.collect(parent, leaf)
			} else {
				t.addData(parent, leaf)
			}
		}
	}

	// The collector stands for the host library carrying the blob; keep it
	// reachable even when nothing was linked into it.
	if !rootNode.hasChild(CollectorID) {
		rootNode.children = append(rootNode.children, collector)
	}

	logging.Debug("built import tree", "root", t.rootKey, "vertices", len(t.nodes))
	return t, nil
}

func (t *ImportTree) addData(parent *Node, m module.Module) *Node {
	n := &Node{id: int64(len(t.nodes)), kind: KindData, module: m}
	t.nodes = append(t.nodes, n)
	parent.children = append(parent.children, n)
	return n
}

func (t *ImportTree) collect(parent *Node, m module.Module) {
	collector := t.nodes[CollectorID]
	collector.modules = append(collector.modules, m)
	if parent != collector && !parent.hasChild(CollectorID) {
		parent.children = append(parent.children, collector)
	}
}

// Root returns the root vertex id, 0 in legacy flat mode
func (t *ImportTree) Root() int64 {
	return t.root
}

// Legacy reports whether the tree was not built because the root is collector kind
func (t *ImportTree) Legacy() bool {
	return t.root == 0
}

// RootTypeKey returns the root module's type key as seen at build time
func (t *ImportTree) RootTypeKey() string {
	return t.rootKey
}

// NumVertices returns the vertex count written to the blob header
func (t *ImportTree) NumVertices() int64 {
	return int64(len(t.nodes))
}

// Vertex returns the node with the given id, or nil
func (t *ImportTree) Vertex(id int64) *Node {
	if id < 0 || id >= int64(len(t.nodes)) {
		return nil
	}
	return t.nodes[id]
}

// From returns the children of id in edge insertion order.
// Together with Edge it satisfies traverse.Graph.
func (t *ImportTree) From(id int64) graph.Nodes {
	n := t.Vertex(id)
	if n == nil || len(n.children) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(n.children))
	for i, c := range n.children {
		nodes[i] = c
	}
	return iterator.NewOrderedNodes(nodes)
}

// Edge returns the edge from uid to vid if it exists
func (t *ImportTree) Edge(uid, vid int64) graph.Edge {
	n := t.Vertex(uid)
	if n == nil || !n.hasChild(vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// Edges returns all edges as [from, to] pairs, grouped by source vertex
func (t *ImportTree) Edges() [][2]int64 {
	var edges [][2]int64
	for _, n := range t.nodes {
		for _, c := range n.children {
			edges = append(edges, [2]int64{n.id, c.id})
		}
	}
	return edges
}

// BFS returns the breadth-first visitation order starting at start.
// Children are visited in the order their edges were added, so the result
// is fixed for a given tree; decoders rely on it.
func (t *ImportTree) BFS(start int64) []int64 {
	from := t.Vertex(start)
	if from == nil {
		return nil
	}

	var order []int64
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			order = append(order, n.ID())
		},
	}
	bf.Walk(t, from, nil)
	return order
}

// CanonicalOrder is the BFS order from the root, nil in legacy mode
func (t *ImportTree) CanonicalOrder() []int64 {
	if t.Legacy() {
		return nil
	}
	return t.BFS(t.root)
}

// Depth returns the largest edge distance from the root to any vertex
func (t *ImportTree) Depth() int {
	if t.Legacy() {
		return 0
	}
	deepest := 0
	var bf traverse.BreadthFirst
	bf.Walk(t, t.nodes[t.root], func(_ graph.Node, d int) bool {
		deepest = max(deepest, d)
		return false
	})
	return deepest
}
