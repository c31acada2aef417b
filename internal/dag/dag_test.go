package dag

import (
	"reflect"
	"testing"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := New()

	g.AddNode("db.sc.a")
	g.AddNode("db.sc.b")
	g.AddEdge("db.sc.a", "db.sc.b")
	g.AddEdge("db.sc.b", "db.sc.c") // missing node created implicitly

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if !g.Has("db.sc.c") {
		t.Error("expected db.sc.c to exist")
	}
}

func TestGraph_DuplicateEdgeIgnored(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}
}

func TestGraph_ParentsAndChildrenSorted(t *testing.T) {
	g := New()
	g.AddEdge("z", "c")
	g.AddEdge("a", "c")
	g.AddEdge("a", "b")

	parents := g.Parents("c")
	if !reflect.DeepEqual(parents, []string{"a", "z"}) {
		t.Errorf("parents of c = %v, want [a z]", parents)
	}

	children := g.Children("a")
	if !reflect.DeepEqual(children, []string{"b", "c"}) {
		t.Errorf("children of a = %v, want [b c]", children)
	}
}

func TestGraph_NodesSorted(t *testing.T) {
	g := New()
	g.AddNode("zz")
	g.AddNode("aa")
	g.AddNode("mm")

	if got := g.Nodes(); !reflect.DeepEqual(got, []string{"aa", "mm", "zz"}) {
		t.Errorf("Nodes() = %v", got)
	}
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := New()
	// a -> b -> c, a -> c
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "c")

	if got := g.Upstream("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Upstream(c) = %v, want [a b]", got)
	}
	if got := g.Downstream("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Downstream(a) = %v, want [b c]", got)
	}
	if got := g.Upstream("a"); len(got) != 0 {
		t.Errorf("Upstream(a) = %v, want empty", got)
	}
}

func TestGraph_CycleTerminates(t *testing.T) {
	g := New()
	// procedure reads and writes the same table
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	if got := g.Upstream("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Upstream(a) = %v, want [b]", got)
	}
	if got := g.Downstream("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Downstream(a) = %v, want [b]", got)
	}
}
