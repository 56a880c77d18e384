package dag

import (
	"errors"
	"reflect"
	"testing"
)

// profileGraph builds item -> parse -> result, plus item -> output.
func profileGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{"item", "parse", "result", "output"} {
		g.AddNode(id)
	}
	for _, e := range []Edge{
		{"item", "parse", "i-id"},
		{"parse", "result", "parse-id"},
		{"item", "output", "i-id"},
	} {
		if err := g.AddEdge(e.Parent, e.Child, e.Key); err != nil {
			t.Fatalf("failed to add edge %v: %v", e, err)
		}
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := profileGraph(t)

	if g.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", g.EdgeCount())
	}

	// duplicate edges are ignored
	if err := g.AddEdge("item", "parse", "i-id"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected duplicate edge to be ignored, got %d edges", g.EdgeCount())
	}

	// same tables through a different key is a distinct edge
	if err := g.AddEdge("item", "parse", "i-origin"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if g.EdgeCount() != 4 {
		t.Errorf("expected 4 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddNode_Idempotent(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("a")

	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
	if !reflect.DeepEqual(g.Nodes(), []string{"a"}) {
		t.Errorf("unexpected nodes %v", g.Nodes())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")

	if err := g.AddEdge("a", "nonexistent", "k"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a", "k"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")

	if err := g.AddEdge("a", "a", "k"); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_ParentsAndChildren(t *testing.T) {
	g := profileGraph(t)

	parents := g.Parents("result")
	want := []Edge{{Parent: "parse", Child: "result", Key: "parse-id"}}
	if !reflect.DeepEqual(parents, want) {
		t.Errorf("expected %v, got %v", want, parents)
	}

	if children := g.Children("item"); len(children) != 2 {
		t.Errorf("expected item to have 2 children, got %d", len(children))
	}
}

func TestGraph_HasCycle(t *testing.T) {
	g := profileGraph(t)
	if hasCycle, _ := g.HasCycle(); hasCycle {
		t.Error("expected no cycle")
	}

	if err := g.AddEdge("result", "item", "r-id"); err != nil {
		t.Fatalf("failed to add edge: %v", err)
	}
	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle")
	}
	if len(path) < 3 {
		t.Errorf("expected cycle path, got %v", path)
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := profileGraph(t)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range g.Nodes() {
		for _, e := range g.Children(id) {
			if pos[e.Parent] >= pos[e.Child] {
				t.Errorf("%s should come before %s in %v", e.Parent, e.Child, order)
			}
		}
	}
}

func TestGraph_TopologicalSort_InsertionOrderTies(t *testing.T) {
	g := NewGraph()
	g.AddNode("zeta")
	g.AddNode("alpha")
	g.AddNode("mid")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestGraph_TopologicalSort_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	g.AddNode("b")
	_ = g.AddEdge("a", "b", "k")
	_ = g.AddEdge("b", "a", "k")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestGraph_Levels(t *testing.T) {
	g := profileGraph(t)

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"item"}, {"output", "parse"}, {"result"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_Levels_Empty(t *testing.T) {
	levels, err := NewGraph().Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("expected no levels, got %v", levels)
	}
}

func TestGraph_Descendants(t *testing.T) {
	g := profileGraph(t)

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"root", []string{"item"}, []string{"output", "parse", "result"}},
		{"middle", []string{"parse"}, []string{"result"}},
		{"leaf", []string{"result"}, []string{}},
		{"unknown", []string{"nope"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Descendants(tt.ids...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGraph_Roots(t *testing.T) {
	g := profileGraph(t)
	g.AddNode("fold")

	want := []string{"fold", "item"}
	if got := g.Roots(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
