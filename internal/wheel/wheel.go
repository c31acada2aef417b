// Package wheel computes the exported lineage graph from a closed registry
// snapshot. Each object's DDL is normalized, split into statements, and
// parsed for parent references (procedure bodies additionally for the
// objects they write to); outgoing edges are derived in a second pass by
// reversing the recorded parents. The builder runs only after the
// registry is fully populated: the second pass assumes a stable known-path
// universe.
package wheel

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/dag"
	"github.com/wheelhouse-labs/wheelhouse/internal/extract"
	"github.com/wheelhouse-labs/wheelhouse/internal/sqlnorm"
)

// Node is one record of the exported graph. Incoming and Outgoing reference
// other records' Name values exactly, in lexicographic order.
type Node struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Database string   `json:"database"`
	Schema   string   `json:"schema"`
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// Options scope a build.
type Options struct {
	// Database restricts extracted references to one database when
	// cross-database references are not resolvable. Empty means no scope.
	Database string
}

// TypeBucket labels synthesized object-store nodes.
const TypeBucket = "BUCKET"

// Wheel is a computed lineage snapshot: the exported node records plus the
// underlying graph for reachability queries.
type Wheel struct {
	Nodes []Node

	graph *dag.Graph
	index map[string]int
}

// Build computes the lineage graph for every object in the registry.
// Objects without DDL contribute no incoming edges but may still receive
// outgoing edges from others. External LOCATION targets become synthesized
// bucket nodes with no incoming edges. Output is sorted by lowercased name
// and is byte-identical across runs on the same snapshot.
func Build(reg *catalog.Registry, opts Options) *Wheel {
	known := reg.Paths()
	g := dag.New()
	external := make(map[string]catalog.ObjectPath)

	for _, o := range reg.Objects() {
		g.AddNode(o.Path.String())
	}

	for _, o := range reg.Objects() {
		if o.DDL == "" {
			continue
		}
		id := o.Path.String()
		for _, stmt := range sqlnorm.SplitStatements(sqlnorm.Normalize(o.DDL)) {
			for _, ref := range extract.Parents(stmt, known, opts.Database) {
				pid := ref.Path.String()
				if ref.External {
					external[pid] = ref.Path
				}
				g.AddEdge(pid, id)
			}
			// A procedure body mutates objects; those writes are the
			// procedure's outgoing edges.
			if o.Kind == catalog.KindProcedure {
				for _, ref := range extract.Children(stmt, known, opts.Database) {
					cid := ref.Path.String()
					if cid == id {
						continue
					}
					g.AddEdge(id, cid)
				}
			}
		}
	}

	nodes := make([]Node, 0, g.NodeCount())
	for _, o := range reg.Objects() {
		id := o.Path.String()
		nodes = append(nodes, Node{
			Name:     id,
			Type:     typeLabel(o),
			Database: o.Path.Database,
			Schema:   o.Path.Schema,
			Incoming: g.Parents(id),
			Outgoing: g.Children(id),
		})
	}
	for id, p := range external {
		nodes = append(nodes, Node{
			Name:     id,
			Type:     TypeBucket,
			Database: p.Database,
			Schema:   p.Schema,
			Incoming: []string{},
			Outgoing: g.Children(id),
		})
	}

	sort.Slice(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.Name] = i
	}
	return &Wheel{Nodes: nodes, graph: g, index: index}
}

// FromNodes reconstructs a wheel from previously exported records, rebuilding
// the reachability graph from each record's incoming edges. Records keep
// their given order.
func FromNodes(nodes []Node) *Wheel {
	g := dag.New()
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		g.AddNode(n.Name)
		index[n.Name] = i
	}
	for _, n := range nodes {
		for _, parent := range n.Incoming {
			g.AddEdge(parent, n.Name)
		}
	}
	return &Wheel{Nodes: nodes, graph: g, index: index}
}

// Node returns the record for a dotted name.
func (w *Wheel) Node(name string) (Node, bool) {
	i, ok := w.index[name]
	if !ok {
		return Node{}, false
	}
	return w.Nodes[i], true
}

// Upstream returns every transitive ancestor of name, sorted.
func (w *Wheel) Upstream(name string) []string {
	return w.graph.Upstream(name)
}

// Downstream returns every transitive descendant of name, sorted.
func (w *Wheel) Downstream(name string) []string {
	return w.graph.Downstream(name)
}

var materializedDDL = regexp.MustCompile(`(?i)create\s+materialized\s+view`)

// typeLabel reworks catalog kinds for the exported records: procedures
// export as STORED PROCEDURE, and views whose DDL creates a materialized
// view export as MATERIALIZED VIEW (some catalogs list them as plain views).
func typeLabel(o *catalog.Object) string {
	switch o.Kind {
	case catalog.KindProcedure:
		return "STORED PROCEDURE"
	case catalog.KindView:
		if materializedDDL.MatchString(o.DDL) {
			return string(catalog.KindMaterializedView)
		}
	}
	return string(o.Kind)
}
