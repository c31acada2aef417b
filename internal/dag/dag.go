// Package dag provides the directed dependency graph behind lineage export.
// Nodes are dotted object paths; an edge parent -> child means the child's
// defining statement reads from the parent. Lineage graphs may legitimately
// contain cycles (a procedure can read and write the same table), so no
// acyclicity is enforced.
package dag

import "sort"

// Graph is a directed graph over object path strings.
type Graph struct {
	nodes    map[string]struct{}
	children map[string][]string // parent -> children, insertion order
	parents  map[string][]string // child -> parents, insertion order
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = struct{}{}
}

// Has reports whether the node exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge records parent -> child, creating missing nodes and ignoring
// duplicate edges.
func (g *Graph) AddEdge(parent, child string) {
	g.AddNode(parent)
	g.AddNode(child)
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
}

// Parents returns the direct parents of id, lexicographically sorted.
func (g *Graph) Parents(id string) []string {
	return sortedCopy(g.parents[id])
}

// Children returns the direct children of id, lexicographically sorted.
func (g *Graph) Children(id string) []string {
	return sortedCopy(g.children[id])
}

// Nodes returns all node IDs, lexicographically sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// Upstream returns every node reachable from id by following parent edges,
// excluding id itself, lexicographically sorted. Cycles terminate naturally.
func (g *Graph) Upstream(id string) []string {
	return g.closure(id, g.parents)
}

// Downstream returns every node reachable from id by following child edges,
// excluding id itself, lexicographically sorted.
func (g *Graph) Downstream(id string) []string {
	return g.closure(id, g.children)
}

func (g *Graph) closure(id string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, n := range next[cur] {
			if !seen[n] {
				seen[n] = true
				walk(n)
			}
		}
	}
	walk(id)
	delete(seen, id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
