package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ritzau/modpack/pkg/module"
)

func blob(key string, imports ...module.Module) module.Module {
	return module.NewBlob(key, []byte(key), imports...)
}

func TestBuildImportTree(t *testing.T) {
	tests := []struct {
		name      string
		root      module.Module
		wantCount int64
		wantOrder []int64
		wantEdges [][2]int64
	}{
		{
			name:      "single collector import",
			root:      blob("device-A", blob("llvm")),
			wantCount: 2,
			wantOrder: []int64{1, 0},
			wantEdges: [][2]int64{{1, 0}},
		},
		{
			name:      "data import only links collector last",
			root:      blob("graph", blob("cuda")),
			wantCount: 3,
			wantOrder: []int64{1, 2, 0},
			wantEdges: [][2]int64{{1, 2}, {1, 0}},
		},
		{
			name:      "collector first then nested data branch",
			root:      blob("graph", blob("llvm"), blob("cuda", blob("opencl"))),
			wantCount: 4,
			wantOrder: []int64{1, 0, 2, 3},
			wantEdges: [][2]int64{{1, 0}, {1, 2}, {2, 3}},
		},
		{
			name:      "data leaf under collector import hangs off vertex 0",
			root:      blob("graph", blob("cuda"), blob("c", blob("opencl"))),
			wantCount: 4,
			wantOrder: []int64{1, 2, 0, 3},
			wantEdges: [][2]int64{{0, 3}, {1, 2}, {1, 0}},
		},
		{
			name:      "collector leaf under data import",
			root:      blob("graph", blob("cuda", blob("llvm"))),
			wantCount: 3,
			wantOrder: []int64{1, 2, 0},
			wantEdges: [][2]int64{{1, 2}, {1, 0}, {2, 0}},
		},
		{
			name:      "two collectors share vertex 0",
			root:      blob("graph", blob("llvm"), blob("c")),
			wantCount: 2,
			wantOrder: []int64{1, 0},
			wantEdges: [][2]int64{{1, 0}},
		},
		{
			name:      "no imports",
			root:      blob("graph"),
			wantCount: 2,
			wantOrder: []int64{1, 0},
			wantEdges: [][2]int64{{1, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := BuildImportTree(tt.root)
			if err != nil {
				t.Fatalf("BuildImportTree() error = %v", err)
			}
			if tree.Root() != RootID {
				t.Errorf("Root() = %d, want %d", tree.Root(), RootID)
			}
			if tree.NumVertices() != tt.wantCount {
				t.Errorf("NumVertices() = %d, want %d", tree.NumVertices(), tt.wantCount)
			}
			if got := tree.CanonicalOrder(); !reflect.DeepEqual(got, tt.wantOrder) {
				t.Errorf("CanonicalOrder() = %v, want %v", got, tt.wantOrder)
			}
			if got := tree.Edges(); !reflect.DeepEqual(got, tt.wantEdges) {
				t.Errorf("Edges() = %v, want %v", got, tt.wantEdges)
			}
			if d := tree.Depth(); d > 2 {
				t.Errorf("Depth() = %d, want at most 2", d)
			}
		})
	}
}

func TestCanonicalOrderCoversEveryVertexOnce(t *testing.T) {
	root := blob("graph",
		blob("llvm"),
		blob("cuda", blob("opencl")),
		blob("c", blob("vulkan")),
		blob("metal"),
	)

	tree, err := BuildImportTree(root)
	if err != nil {
		t.Fatalf("BuildImportTree() error = %v", err)
	}

	first := tree.CanonicalOrder()
	for i := 0; i < 5; i++ {
		if again := tree.CanonicalOrder(); !reflect.DeepEqual(first, again) {
			t.Fatalf("order changed between calls: %v vs %v", first, again)
		}
	}

	if int64(len(first)) != tree.NumVertices() {
		t.Fatalf("order has %d entries for %d vertices", len(first), tree.NumVertices())
	}
	seen := make(map[int64]bool)
	for _, id := range first {
		if id < 0 || id >= tree.NumVertices() {
			t.Errorf("vertex id %d out of range", id)
		}
		if seen[id] {
			t.Errorf("vertex %d visited twice", id)
		}
		seen[id] = true
	}
	if first[0] != RootID {
		t.Errorf("order must start at the root, got %v", first)
	}
}

func TestRootTypeKeyIsNotOverwritten(t *testing.T) {
	tree, err := BuildImportTree(blob("graph", blob("cuda"), blob("llvm")))
	if err != nil {
		t.Fatal(err)
	}
	if tree.RootTypeKey() != "graph" {
		t.Errorf("RootTypeKey() = %q, want graph", tree.RootTypeKey())
	}
	if tree.Vertex(RootID).Kind() != KindRoot {
		t.Errorf("vertex 1 kind = %v", tree.Vertex(RootID).Kind())
	}
}

func TestCollectorRecordsLinkedModules(t *testing.T) {
	llvm := blob("llvm")
	c := blob("c")
	tree, err := BuildImportTree(blob("graph", llvm, blob("cuda", c)))
	if err != nil {
		t.Fatal(err)
	}

	collector := tree.Vertex(CollectorID)
	if collector.Kind() != KindCollector || collector.Module() != nil {
		t.Fatalf("vertex 0 should be a module-less collector")
	}
	got := collector.Collected()
	if len(got) != 2 || got[0] != llvm || got[1] != c {
		t.Errorf("Collected() = %v", got)
	}
}

func TestLegacyMode(t *testing.T) {
	tree, err := BuildImportTree(blob("llvm", blob("cuda"), blob("opencl")))
	if err != nil {
		t.Fatalf("BuildImportTree() error = %v", err)
	}
	if !tree.Legacy() || tree.Root() != 0 {
		t.Errorf("expected legacy tree, root = %d", tree.Root())
	}
	if tree.NumVertices() != 0 {
		t.Errorf("legacy tree should have no vertices, got %d", tree.NumVertices())
	}
	if order := tree.CanonicalOrder(); order != nil {
		t.Errorf("legacy tree should have no order, got %v", order)
	}
}

func TestHierarchyViolations(t *testing.T) {
	tests := []struct {
		name    string
		root    module.Module
		wantErr error
	}{
		{
			name:    "direct import with two imports",
			root:    blob("graph", blob("cuda", blob("a"), blob("b"))),
			wantErr: ErrHierarchyBreadth,
		},
		{
			name:    "breadth is checked in legacy mode too",
			root:    blob("llvm", blob("cuda", blob("a"), blob("b"))),
			wantErr: ErrHierarchyBreadth,
		},
		{
			name:    "second level module with imports",
			root:    blob("graph", blob("cuda", blob("opencl", blob("x")))),
			wantErr: ErrHierarchyDepth,
		},
		{
			name:    "second level under collector with imports",
			root:    blob("graph", blob("llvm", blob("c", blob("x")))),
			wantErr: ErrHierarchyDepth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := BuildImportTree(tt.root)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BuildImportTree() error = %v, want %v", err, tt.wantErr)
			}
			if tree != nil {
				t.Error("expected no tree on error")
			}
		})
	}
}

func TestBFSFromInnerVertex(t *testing.T) {
	tree, err := BuildImportTree(blob("graph", blob("cuda", blob("opencl"))))
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.BFS(2); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Errorf("BFS(2) = %v", got)
	}
	if got := tree.BFS(42); got != nil {
		t.Errorf("BFS on unknown vertex = %v, want nil", got)
	}
}

func TestEdgeLookup(t *testing.T) {
	tree, err := BuildImportTree(blob("graph", blob("cuda")))
	if err != nil {
		t.Fatal(err)
	}
	if e := tree.Edge(1, 2); e == nil || e.From().ID() != 1 || e.To().ID() != 2 {
		t.Errorf("Edge(1, 2) = %v", e)
	}
	if e := tree.Edge(2, 1); e != nil {
		t.Errorf("Edge(2, 1) should not exist, got %v", e)
	}
}
